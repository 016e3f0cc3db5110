package verify

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/podcastindex"
)

type gofeedChecker struct {
	parser *gofeed.Parser
}

func newFeedChecker() FeedChecker {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: 10 * time.Second}
	p.UserAgent = "profile-cli/1.0"
	return &gofeedChecker{parser: p}
}

func (g *gofeedChecker) CheckFeed(ctx context.Context, url string) (*FeedInfo, error) {
	feed, err := g.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "verify: feed %s", url)
	}
	return &FeedInfo{Title: feed.Title, EpisodeCount: len(feed.Items)}, nil
}

// verifyPodcast checks the claimed RSS feed, then the fixed-convention feed
// URLs derived from the subject's name, then the podcast catalog.
func (v *Verifier) verifyPodcast(ctx context.Context, p *model.CandidateProfile) *model.VerifiedLink {
	if claimed := p.Links.Podcast; claimed != "" {
		if link := v.checkFeedURL(ctx, claimed); link != nil {
			return link
		}
		p.AddNote("verify", "claimed podcast feed dead: "+claimed)
	}

	slug := model.Slug(p.DisplayName)
	if slug == "" {
		slug = model.Slug(p.Name)
	}
	if slug != "" {
		for _, url := range podcastindex.ConventionFeedURLs(slug) {
			if link := v.checkFeedURL(ctx, url); link != nil {
				p.AddNote("verify", "podcast found at convention feed: "+url)
				return link
			}
		}
	}

	if v.podcast != nil {
		cctx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		pods, err := v.podcast.SearchByName(cctx, p.Name)
		if err == nil {
			for _, pod := range pods {
				if pod.RSSURL == "" {
					continue
				}
				if link := v.checkFeedURL(ctx, pod.RSSURL); link != nil {
					return link
				}
			}
		}
	}

	return nil
}

func (v *Verifier) checkFeedURL(ctx context.Context, url string) *model.VerifiedLink {
	fctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	info, err := v.feeds.CheckFeed(fctx, url)
	if err != nil {
		return nil
	}
	return &model.VerifiedLink{
		Kind:         model.LinkPodcast,
		URL:          url,
		FeedTitle:    info.Title,
		EpisodeCount: info.EpisodeCount,
	}
}
