// Package discovery implements the first pipeline stage: fan out to every
// provider adapter concurrently and merge the results into a single
// CandidateProfile. A provider failure degrades to "not found" plus a note and
// never aborts the stage.
package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/creatorindex/profile-cli/internal/cost"
	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/internal/profilestore"
	"github.com/creatorindex/profile-cli/internal/resilience"
	"github.com/creatorindex/profile-cli/pkg/books"
	"github.com/creatorindex/profile-cli/pkg/kgraph"
	"github.com/creatorindex/profile-cli/pkg/newsapi"
	"github.com/creatorindex/profile-cli/pkg/podcastindex"
	"github.com/creatorindex/profile-cli/pkg/research"
	"github.com/creatorindex/profile-cli/pkg/youtube"
)

const (
	defaultProviderTimeout = 20 * time.Second
	defaultCacheTTL        = 72 * time.Hour
	maxArticles            = 5
)

// Providers bundles the external adapters discovery fans out to. Any nil
// provider is skipped.
type Providers struct {
	YouTube  youtube.Client
	Books    books.Client
	Podcast  podcastindex.Client
	KGraph   kgraph.Client
	News     newsapi.Client
	Research research.Client
}

// Discoverer runs the discovery stage.
type Discoverer struct {
	providers Providers
	cache     profilestore.Store
	cacheTTL  time.Duration
	timeout   time.Duration
	costs     *cost.Tracker
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithCache shields the expensive structured lookups (channel, books) behind
// the store's lookup cache.
func WithCache(store profilestore.Store, ttl time.Duration) Option {
	return func(d *Discoverer) {
		d.cache = store
		if ttl > 0 {
			d.cacheTTL = ttl
		}
	}
}

// WithCostTracker records paid research queries against the given tracker.
func WithCostTracker(t *cost.Tracker) Option {
	return func(d *Discoverer) {
		d.costs = t
	}
}

// WithProviderTimeout bounds each individual provider call.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// New creates a Discoverer.
func New(providers Providers, opts ...Option) *Discoverer {
	d := &Discoverer{
		providers: providers,
		cacheTTL:  defaultCacheTTL,
		timeout:   defaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// retryCfg builds the per-provider retry policy: transient failures get one
// retry, anything else degrades immediately.
func retryCfg(provider, op string) resilience.RetryConfig {
	cfg := resilience.ProviderRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(provider, op)
	return cfg
}

// findings accumulates raw provider results under a mutex; the merge into the
// profile happens afterwards in a fixed order so the output is deterministic
// regardless of goroutine completion order.
type findings struct {
	mu       sync.Mutex
	channel  *youtube.Channel
	volumes  []books.Volume
	podcasts []podcastindex.Podcast
	entity   *kgraph.Entity
	articles []newsapi.Article
	research *researchPayload
	notes    []model.DiscoveryNote
	sources  []string
}

func (f *findings) note(provider, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, model.DiscoveryNote{
		Provider: provider,
		Message:  message,
		At:       time.Now().UTC(),
	})
}

func (f *findings) hit(provider string, apply func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply()
	f.sources = append(f.sources, provider)
}

// Discover queries all providers concurrently and merges their outputs. A
// cancelled context still yields the best-effort profile gathered so far.
func (d *Discoverer) Discover(ctx context.Context, name string) (*model.CandidateProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.New("discovery: empty subject name")
	}

	log := zap.L().With(zap.String("subject", name))
	log.Debug("discovery fan-out starting")

	f := &findings{}
	g, gctx := errgroup.WithContext(ctx)

	if d.providers.YouTube != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			ch, err := d.cachedChannel(cctx, name)
			switch {
			case eris.Is(err, youtube.ErrNotFound):
				f.note("youtube", "no channel matched")
			case err != nil:
				f.note("youtube", "lookup failed: "+err.Error())
			default:
				f.hit("youtube", func() { f.channel = ch })
			}
			return nil
		})
	}

	if d.providers.Books != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			vols, err := d.cachedVolumes(cctx, name)
			switch {
			case err != nil:
				f.note("books", "lookup failed: "+err.Error())
			case len(vols) == 0:
				f.note("books", "no volumes matched")
			default:
				f.hit("books", func() { f.volumes = vols })
			}
			return nil
		})
	}

	if d.providers.Podcast != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			pods, err := resilience.DoVal(cctx, retryCfg("podcast", "search"), func(ctx context.Context) ([]podcastindex.Podcast, error) {
				return d.providers.Podcast.SearchByName(ctx, name)
			})
			switch {
			case err != nil:
				f.note("podcast", "lookup failed: "+err.Error())
			case len(pods) == 0:
				f.note("podcast", "no podcasts matched")
			default:
				f.hit("podcast", func() { f.podcasts = pods })
			}
			return nil
		})
	}

	if d.providers.KGraph != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			ent, err := resilience.DoVal(cctx, retryCfg("kgraph", "lookup"), func(ctx context.Context) (*kgraph.Entity, error) {
				return d.providers.KGraph.Lookup(ctx, name)
			})
			switch {
			case eris.Is(err, kgraph.ErrNotFound):
				f.note("kgraph", "no entity matched")
			case err != nil:
				f.note("kgraph", "lookup failed: "+err.Error())
			default:
				f.hit("kgraph", func() { f.entity = ent })
			}
			return nil
		})
	}

	if d.providers.News != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			articles, err := resilience.DoVal(cctx, retryCfg("news", "search"), func(ctx context.Context) ([]newsapi.Article, error) {
				return d.providers.News.Search(ctx, name, maxArticles)
			})
			if err != nil {
				f.note("news", "lookup failed: "+err.Error())
				return nil
			}
			relevant := filterArticles(name, articles)
			if len(relevant) == 0 {
				f.note("news", "no relevant articles")
				return nil
			}
			f.hit("news", func() { f.articles = relevant })
			return nil
		})
	}

	if d.providers.Research != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()
			payload, err := d.runResearch(cctx, name)
			if err != nil {
				f.note("research", err.Error())
				return nil
			}
			f.hit("research", func() { f.research = payload })
			return nil
		})
	}

	// Goroutines never return errors; Wait only surfaces parent cancellation,
	// and even then the partial findings are kept.
	if err := g.Wait(); err != nil {
		log.Warn("discovery interrupted", zap.Error(err))
	}

	profile := d.merge(name, f)
	log.Debug("discovery complete",
		zap.Strings("sources", profile.Sources),
		zap.Int("notes", len(profile.Notes)))
	return profile, nil
}

// merge folds the findings into a CandidateProfile. Structured-API values win
// over research claims for any fact both can supply; research only fills the
// narrative fields no structured provider answers.
func (d *Discoverer) merge(name string, f *findings) *model.CandidateProfile {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &model.CandidateProfile{
		Name:        name,
		DisplayName: name,
	}
	p.Notes = f.notes
	for _, s := range f.sources {
		p.AddSource(s)
	}
	p.NameVariants = append(p.NameVariants, name)

	if r := f.research; r != nil {
		if r.Name != "" {
			p.DisplayName = r.Name
			p.NameVariants = append(p.NameVariants, r.Name)
		}
		p.Title = r.Title
		p.Gender = r.Gender
		p.Category = r.Category
		p.Region = r.Region
		p.Country = r.Country
		p.Languages = r.Languages
		p.Topics = r.Topics
		p.Bio = r.Bio
		p.ImageQuery = r.ImageQuery
		p.ClaimedBooks = r.Books
		p.Courses = r.Courses
		p.AudioBooks = r.AudioBooks
		p.EBooks = r.EBooks
		p.Links = r.links()
		if r.Historical != nil {
			p.Historical = &model.HistoricalInfo{
				Lifespan: r.Historical.Lifespan,
				Note:     r.Historical.Note,
			}
		}
	}

	if e := f.entity; e != nil {
		// Encyclopedic bio beats the research paraphrase.
		if e.DetailedDescription != "" {
			p.Bio = e.DetailedDescription
		} else if p.Bio == "" && e.Description != "" {
			p.Bio = e.Description
		}
		if e.ImageURL != "" {
			p.ImageURL = e.ImageURL
		}
		if e.URL != "" && p.Links.Website == "" {
			p.Links.Website = e.URL
		}
		if e.Name != "" {
			p.NameVariants = append(p.NameVariants, e.Name)
		}
	}

	if ch := f.channel; ch != nil {
		p.Channel = &model.ChannelStats{
			ChannelID:       ch.ChannelID,
			Title:           ch.Title,
			SubscriberCount: ch.SubscriberCount,
			VideoCount:      ch.VideoCount,
			ThumbnailURL:    ch.ThumbnailURL,
			Description:     ch.Description,
		}
		if p.ImageURL == "" && ch.ThumbnailURL != "" {
			p.ImageURL = ch.ThumbnailURL
		}
		if p.Links.YouTube == "" && ch.ChannelID != "" {
			p.Links.YouTube = "https://www.youtube.com/channel/" + ch.ChannelID
		}
		if ch.Title != "" {
			p.NameVariants = append(p.NameVariants, ch.Title)
		}
	}

	for _, v := range f.volumes {
		p.Books = append(p.Books, model.Book{
			Title:         v.Title,
			Authors:       v.Authors,
			PublishedDate: v.PublishedDate,
			Thumbnail:     v.Thumbnail,
			ISBN:          v.ISBN,
			AmazonURL:     v.AmazonURL,
		})
	}

	if len(f.podcasts) > 0 && p.Links.Podcast == "" {
		p.Links.Podcast = f.podcasts[0].RSSURL
	}

	for _, a := range f.articles {
		p.Articles = append(p.Articles, model.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
		})
	}

	return p
}

// cachedChannel looks up the channel through the long-TTL cache. The cache is
// shared across concurrent discoveries; last-write-wins is safe because the
// value derives purely from the external source.
func (d *Discoverer) cachedChannel(ctx context.Context, name string) (*youtube.Channel, error) {
	key := model.NormalizeName(name)
	if d.cache != nil {
		if payload, err := d.cache.GetCachedLookup(ctx, "youtube", key); err == nil {
			var ch youtube.Channel
			if json.Unmarshal(payload, &ch) == nil {
				return &ch, nil
			}
		}
	}

	ch, err := resilience.DoVal(ctx, retryCfg("youtube", "search_channel"), func(ctx context.Context) (*youtube.Channel, error) {
		return d.providers.YouTube.SearchChannel(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if payload, err := json.Marshal(ch); err == nil {
			if cacheErr := d.cache.SetCachedLookup(ctx, "youtube", key, payload, d.cacheTTL); cacheErr != nil {
				zap.L().Warn("channel cache write failed", zap.Error(cacheErr))
			}
		}
	}
	return ch, nil
}

func (d *Discoverer) cachedVolumes(ctx context.Context, name string) ([]books.Volume, error) {
	key := model.NormalizeName(name)
	if d.cache != nil {
		if payload, err := d.cache.GetCachedLookup(ctx, "books", key); err == nil {
			var vols []books.Volume
			if json.Unmarshal(payload, &vols) == nil {
				return vols, nil
			}
		}
	}

	vols, err := resilience.DoVal(ctx, retryCfg("books", "search_author"), func(ctx context.Context) ([]books.Volume, error) {
		return d.providers.Books.SearchByAuthor(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	if len(vols) > 0 && d.cache != nil {
		if payload, err := json.Marshal(vols); err == nil {
			if cacheErr := d.cache.SetCachedLookup(ctx, "books", key, payload, d.cacheTTL); cacheErr != nil {
				zap.L().Warn("volume cache write failed", zap.Error(cacheErr))
			}
		}
	}
	return vols, nil
}

// filterArticles keeps articles whose title+description contain enough of the
// subject's name tokens to plausibly be about them.
func filterArticles(name string, articles []newsapi.Article) []newsapi.Article {
	tokens := model.NameTokens(name)
	if len(tokens) == 0 {
		return nil
	}
	required := 2
	if len(tokens) < required {
		required = len(tokens)
	}

	var kept []newsapi.Article
	for _, a := range articles {
		haystack := strings.ToLower(a.Title + " " + a.Description)
		matched := 0
		for _, t := range tokens {
			if strings.Contains(haystack, t) {
				matched++
			}
		}
		if matched >= required {
			kept = append(kept, a)
			if len(kept) == maxArticles {
				break
			}
		}
	}
	return kept
}
