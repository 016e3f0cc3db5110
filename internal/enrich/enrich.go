// Package enrich implements the third pipeline stage: score the verified
// profile, optionally improve a thin biography, and assemble the
// storage-ready EnrichedProfile.
package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/cost"
	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/anthropic"
)

const (
	minBioLength    = 100
	rewriteTokenCap = 1024
)

// Enricher runs the enrichment stage. The writer client is optional; without
// it the bio rewrite step is skipped entirely.
type Enricher struct {
	writer      anthropic.Client
	writerModel string
	costs       *cost.Tracker
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithWriter enables the best-effort bio rewrite through the given model.
func WithWriter(client anthropic.Client, model string) Option {
	return func(e *Enricher) {
		e.writer = client
		e.writerModel = model
	}
}

// WithCostTracker records writer token usage against the given tracker.
func WithCostTracker(t *cost.Tracker) Option {
	return func(e *Enricher) {
		e.costs = t
	}
}

// New creates an Enricher.
func New(opts ...Option) *Enricher {
	e := &Enricher{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich scores the profile and assembles the terminal record. The rewrite
// call is best-effort: its failure never fails the stage.
func (e *Enricher) Enrich(ctx context.Context, v *model.VerifiedProfile) *model.EnrichedProfile {
	score, fired := Score(v)
	confidence := model.BucketConfidence(score)

	log := zap.L().With(zap.String("subject", v.Name))
	log.Debug("confidence scored",
		zap.Int("score", score),
		zap.Strings("rules", fired))

	bio := v.Bio
	category := v.Category
	topics := v.Topics
	if e.writer != nil && (confidence == model.ConfidenceLow || len(bio) < minBioLength) {
		if improved := e.rewriteBio(ctx, v); improved != nil {
			if improved.Bio != "" {
				bio = improved.Bio
			}
			if improved.Category != "" {
				category = improved.Category
			}
			if len(improved.Topics) > 0 {
				topics = improved.Topics
			}
		}
	}

	display := v.DisplayName
	if display == "" {
		display = v.Name
	}

	out := &model.EnrichedProfile{
		Name:        v.Name,
		DisplayName: display,
		Title:       v.Title,
		Gender:      v.Gender,
		Category:    category,
		Region:      v.Region,
		Country:     v.Country,
		Languages:   v.Languages,
		Topics:      topics,
		Bio:         bio,
		ImageURL:    v.ImageURL,

		SocialLinks: make(map[model.LinkKind]string, len(v.VerifiedLinks)),

		Courses:    v.Courses,
		AudioBooks: v.AudioBooks,
		EBooks:     v.EBooks,
		Historical: v.Historical,
		Articles:   v.Articles,

		Confidence:      confidence,
		ConfidenceScore: score,
		Tier:            model.TierForConfidence(confidence),

		DataSources:  v.Sources,
		NameVariants: v.NameVariants,
	}
	out.Pipeline.EnrichedAt = time.Now().UTC()

	for kind, link := range v.VerifiedLinks {
		out.SocialLinks[kind] = link.URL
	}

	if yt := v.VerifiedLinks[model.LinkYouTube]; yt != nil {
		block := &model.YouTubeBlock{
			ChannelID:       yt.ChannelID,
			URL:             yt.URL,
			SubscriberCount: yt.SubscriberCount,
		}
		if v.Channel != nil {
			block.Title = v.Channel.Title
			block.VideoCount = v.Channel.VideoCount
		}
		block.RecentUploads = v.RecentUploads
		out.YouTube = block
	}

	if pod := v.VerifiedLinks[model.LinkPodcast]; pod != nil {
		out.Podcast = &model.PodcastBlock{
			FeedURL:      pod.URL,
			Title:        pod.FeedTitle,
			EpisodeCount: pod.EpisodeCount,
		}
	}

	// Catalog-matched books beat research claims for the same titles.
	if len(v.Books) > 0 {
		out.Books = v.Books
	} else {
		for _, title := range v.ClaimedBooks {
			out.Books = append(out.Books, model.Book{Title: title})
		}
	}

	return out
}
