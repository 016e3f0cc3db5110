package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/cost"
	"github.com/creatorindex/profile-cli/internal/discovery"
	"github.com/creatorindex/profile-cli/internal/enrich"
	"github.com/creatorindex/profile-cli/internal/pipeline"
	"github.com/creatorindex/profile-cli/internal/profilestore"
	"github.com/creatorindex/profile-cli/internal/syncer"
	"github.com/creatorindex/profile-cli/internal/validate"
	"github.com/creatorindex/profile-cli/internal/verify"
	anthropicpkg "github.com/creatorindex/profile-cli/pkg/anthropic"
	"github.com/creatorindex/profile-cli/pkg/books"
	"github.com/creatorindex/profile-cli/pkg/kgraph"
	"github.com/creatorindex/profile-cli/pkg/linkprobe"
	"github.com/creatorindex/profile-cli/pkg/newsapi"
	"github.com/creatorindex/profile-cli/pkg/podcastindex"
	"github.com/creatorindex/profile-cli/pkg/research"
	"github.com/creatorindex/profile-cli/pkg/youtube"
)

// pipelineEnv holds the initialized store, stages, and services shared by the
// generate/batch/sync/refresh/serve commands.
type pipelineEnv struct {
	Store      profilestore.Store
	Discoverer *discovery.Discoverer
	Pipeline   *pipeline.Pipeline
	Syncer     *syncer.Syncer
	Costs      *cost.Tracker
}

// Close logs the run's estimated provider spend and releases the store.
func (pe *pipelineEnv) Close() {
	if pe.Costs != nil {
		if sum := pe.Costs.Summary(); sum.WriterCalls > 0 || sum.ResearchQueries > 0 {
			zap.L().Info("estimated provider spend",
				zap.Int("research_queries", sum.ResearchQueries),
				zap.Int("writer_calls", sum.WriterCalls),
				zap.Int64("writer_input_tokens", sum.WriterInput),
				zap.Int64("writer_output_tokens", sum.WriterOutput),
				zap.Float64("estimated_usd", sum.EstimatedUSD),
			)
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (profilestore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "profiles.db"
		}
		return profilestore.NewSQLite(dsn)
	case "postgres":
		return profilestore.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, the provider clients, and the stage
// services. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	providers := discovery.Providers{}
	if cfg.YouTube.Key != "" {
		ytOpts := []youtube.Option{}
		if cfg.YouTube.BaseURL != "" {
			ytOpts = append(ytOpts, youtube.WithBaseURL(cfg.YouTube.BaseURL))
		}
		providers.YouTube = youtube.NewClient(cfg.YouTube.Key, ytOpts...)
	} else {
		zap.L().Warn("PROFILE_YOUTUBE_KEY not set, channel lookups disabled")
	}
	if cfg.Books.Key != "" {
		bkOpts := []books.Option{}
		if cfg.Books.BaseURL != "" {
			bkOpts = append(bkOpts, books.WithBaseURL(cfg.Books.BaseURL))
		}
		if cfg.Books.MaxResults > 0 {
			bkOpts = append(bkOpts, books.WithMaxResults(cfg.Books.MaxResults))
		}
		providers.Books = books.NewClient(cfg.Books.Key, bkOpts...)
	}
	pcOpts := []podcastindex.Option{}
	if cfg.Podcast.BaseURL != "" {
		pcOpts = append(pcOpts, podcastindex.WithBaseURL(cfg.Podcast.BaseURL))
	}
	providers.Podcast = podcastindex.NewClient(pcOpts...)
	if cfg.KGraph.Key != "" {
		kgOpts := []kgraph.Option{}
		if cfg.KGraph.BaseURL != "" {
			kgOpts = append(kgOpts, kgraph.WithBaseURL(cfg.KGraph.BaseURL))
		}
		providers.KGraph = kgraph.NewClient(cfg.KGraph.Key, kgOpts...)
	}
	if cfg.News.Key != "" {
		nwOpts := []newsapi.Option{}
		if cfg.News.BaseURL != "" {
			nwOpts = append(nwOpts, newsapi.WithBaseURL(cfg.News.BaseURL))
		}
		providers.News = newsapi.NewClient(cfg.News.Key, nwOpts...)
	}
	if cfg.Research.Key != "" {
		rsOpts := []research.Option{}
		if cfg.Research.BaseURL != "" {
			rsOpts = append(rsOpts, research.WithBaseURL(cfg.Research.BaseURL))
		}
		if cfg.Research.Model != "" {
			rsOpts = append(rsOpts, research.WithModel(cfg.Research.Model))
		}
		providers.Research = research.NewClient(cfg.Research.Key, rsOpts...)
	} else {
		zap.L().Warn("PROFILE_RESEARCH_KEY not set, narrative fields will be empty")
	}

	costs := cost.NewTracker(cost.DefaultRates())

	discOpts := []discovery.Option{
		discovery.WithCache(st, cfg.Cache.TTL()),
		discovery.WithCostTracker(costs),
	}
	if cfg.Pipeline.ProviderTimeoutSecs > 0 {
		discOpts = append(discOpts,
			discovery.WithProviderTimeout(time.Duration(cfg.Pipeline.ProviderTimeoutSecs)*time.Second))
	}
	discoverer := discovery.New(providers, discOpts...)

	prober := linkprobe.New()
	vfOpts := []verify.Option{}
	if cfg.Verify.ProbeTimeoutSecs > 0 {
		vfOpts = append(vfOpts,
			verify.WithProbeTimeout(time.Duration(cfg.Verify.ProbeTimeoutSecs)*time.Second))
	}
	verifier := verify.New(prober, providers.YouTube, providers.Podcast, vfOpts...)

	enOpts := []enrich.Option{enrich.WithCostTracker(costs)}
	if cfg.Anthropic.Key != "" {
		enOpts = append(enOpts,
			enrich.WithWriter(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model))
	} else {
		zap.L().Debug("PROFILE_ANTHROPIC_KEY not set, bio rewrite disabled")
	}
	enricher := enrich.New(enOpts...)

	validator := validate.New(prober)

	plOpts := []pipeline.Option{}
	if cfg.Pipeline.BatchCap > 0 {
		plOpts = append(plOpts, pipeline.WithBatchCap(cfg.Pipeline.BatchCap))
	}
	if cfg.Pipeline.InterSubjectDelayMs > 0 {
		plOpts = append(plOpts,
			pipeline.WithInterSubjectDelay(time.Duration(cfg.Pipeline.InterSubjectDelayMs)*time.Millisecond))
	}
	p := pipeline.New(discoverer, verifier, enricher, validator, st, plOpts...)

	syOpts := []syncer.Option{}
	if cfg.Sync.InterSubjectDelayMs > 0 {
		syOpts = append(syOpts,
			syncer.WithInterSubjectDelay(time.Duration(cfg.Sync.InterSubjectDelayMs)*time.Millisecond))
	}
	sy := syncer.New(discoverer, st, prober, syOpts...)

	return &pipelineEnv{
		Store:      st,
		Discoverer: discoverer,
		Pipeline:   p,
		Syncer:     sy,
		Costs:      costs,
	}, nil
}
