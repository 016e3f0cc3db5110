// Package verify implements the second pipeline stage: every link candidate
// from discovery is independently confirmed with a category-specific check.
// A link either comes out as fully populated valid metadata or is absent;
// nothing "unverified" survives downstream.
package verify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/linkprobe"
	"github.com/creatorindex/profile-cli/pkg/podcastindex"
	"github.com/creatorindex/profile-cli/pkg/youtube"
)

const defaultProbeTimeout = 10 * time.Second

// genericKinds are the link categories verified by a plain reachability probe.
var genericKinds = []model.LinkKind{
	model.LinkWebsite, model.LinkTwitter, model.LinkInstagram,
	model.LinkFacebook, model.LinkTikTok, model.LinkSpotify,
}

// FeedChecker confirms a podcast RSS feed exists and reports its identity.
type FeedChecker interface {
	CheckFeed(ctx context.Context, url string) (*FeedInfo, error)
}

// FeedInfo is the metadata a live feed yields.
type FeedInfo struct {
	Title        string
	EpisodeCount int
}

// Verifier runs the verification stage.
type Verifier struct {
	prober  linkprobe.Prober
	youtube youtube.Client
	podcast podcastindex.Client
	feeds   FeedChecker
	timeout time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithProbeTimeout bounds each individual link check.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(v *Verifier) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// WithFeedChecker overrides the RSS feed checker, used by tests.
func WithFeedChecker(fc FeedChecker) Option {
	return func(v *Verifier) {
		v.feeds = fc
	}
}

// New creates a Verifier. The youtube and podcast clients may be nil, in which
// case their category-specific checks are skipped.
func New(prober linkprobe.Prober, yt youtube.Client, pc podcastindex.Client, opts ...Option) *Verifier {
	v := &Verifier{
		prober:  prober,
		youtube: yt,
		podcast: pc,
		feeds:   newFeedChecker(),
		timeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks every link candidate on the profile. Fallback searches for
// youtube and podcast run even when discovery offered no hint, so verification
// can find links discovery missed.
func (v *Verifier) Verify(ctx context.Context, candidate *model.CandidateProfile) *model.VerifiedProfile {
	out := &model.VerifiedProfile{
		CandidateProfile: *candidate,
		VerifiedLinks:    make(map[model.LinkKind]*model.VerifiedLink),
	}
	log := zap.L().With(zap.String("subject", candidate.Name))

	for _, kind := range genericKinds {
		url := candidate.Links.Get(kind)
		if url == "" {
			continue
		}
		out.Verification.LinksChecked++
		if v.probe(ctx, url) {
			out.Verification.LinksValid++
			out.VerifiedLinks[kind] = &model.VerifiedLink{Kind: kind, URL: url}
			if kind == model.LinkSpotify {
				out.Verification.SpotifyVerified = true
			}
		} else {
			out.Verification.LinksInvalid++
			out.AddNote("verify", string(kind)+" link unreachable: "+url)
			log.Debug("link failed probe", zap.String("kind", string(kind)), zap.String("url", url))
		}
	}

	if link := v.verifyYouTube(ctx, &out.CandidateProfile); link != nil {
		out.VerifiedLinks[model.LinkYouTube] = link
		out.Verification.YouTubeVerified = true
		out.RecentUploads = v.recentUploads(ctx, link.ChannelID)
	} else if candidate.Links.YouTube != "" {
		out.Verification.LinksChecked++
		out.Verification.LinksInvalid++
	}

	if link := v.verifyPodcast(ctx, &out.CandidateProfile); link != nil {
		out.VerifiedLinks[model.LinkPodcast] = link
		out.Verification.PodcastVerified = true
	} else if candidate.Links.Podcast != "" {
		out.Verification.LinksChecked++
		out.Verification.LinksInvalid++
	}

	log.Debug("verification complete",
		zap.Int("checked", out.Verification.LinksChecked),
		zap.Int("valid", out.Verification.LinksValid),
		zap.Int("invalid", out.Verification.LinksInvalid))
	return out
}

func (v *Verifier) probe(ctx context.Context, url string) bool {
	pctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	ok, _, err := v.prober.Probe(pctx, url)
	return err == nil && ok
}
