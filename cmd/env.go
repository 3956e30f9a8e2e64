package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/enrich"
	"github.com/brandscope/overview-service/internal/pipeline"
	"github.com/brandscope/overview-service/internal/scrape"
	"github.com/brandscope/overview-service/internal/store"
	anthropicpkg "github.com/brandscope/overview-service/pkg/anthropic"
	"github.com/brandscope/overview-service/pkg/firecrawl"
	"github.com/brandscope/overview-service/pkg/jina"
	"github.com/brandscope/overview-service/pkg/notify"
	"github.com/brandscope/overview-service/pkg/zoho"
)

// enrichMaxResults caps search hits per enrichment source.
const enrichMaxResults = 5

// overviewEnv holds the initialized store, clients, and orchestrator shared
// by the run/batch/serve commands.
type overviewEnv struct {
	Store        store.Store
	Orchestrator *pipeline.Orchestrator
	CRM          zoho.Client // nil when Zoho is not configured
	Notifier     notify.Sink
}

// Close releases resources held by the environment.
func (e *overviewEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "overview.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, all API clients, and the orchestrator. Callers
// should defer env.Close().
func initEnv(ctx context.Context) (*overviewEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (OVERVIEW_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	// Zoho is optional: without it, runs skip the CRM write-back.
	var crmClient zoho.Client
	if cfg.Zoho.RefreshToken != "" {
		crmClient = zoho.NewClient(zoho.Config{
			ClientID:     cfg.Zoho.ClientID,
			ClientSecret: cfg.Zoho.ClientSecret,
			RefreshToken: cfg.Zoho.RefreshToken,
			AccountsURL:  cfg.Zoho.AccountsURL,
			APIBaseURL:   cfg.Zoho.APIBaseURL,
			Module:       cfg.Zoho.Module,
		}, zoho.WithRateLimit(cfg.Zoho.RateLimitRPS))
	} else {
		zap.L().Warn("zoho not configured, CRM write-back disabled")
	}

	var notifier notify.Sink = notify.NopSink{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookSink(cfg.Notify.WebhookURL)
	}

	// Scrape chain: Jina Reader primary, Firecrawl fallback.
	chain := scrape.NewChain(
		scrape.NewJinaScraper(jinaClient),
		scrape.NewFirecrawlScraper(firecrawlClient, cfg.Scrape.TimeoutSecs*1000),
	)

	gatherer := enrich.NewGatherer(
		enrich.DefaultSources(jinaClient, enrichMaxResults),
		cfg.Enrich.MaxConcurrent,
		time.Duration(cfg.Enrich.TimeoutSecs)*time.Second,
	)

	models := append([]string{cfg.Anthropic.Model}, cfg.Anthropic.FallbackModels...)
	analyzer := pipeline.NewAnalyzer(anthropicClient, models, cfg.Anthropic.MaxTokens, cfg.Anthropic.MaxAttempts)

	orch := pipeline.NewOrchestrator(cfg, st, chain, gatherer, analyzer, crmClient, notifier)

	return &overviewEnv{
		Store:        st,
		Orchestrator: orch,
		CRM:          crmClient,
		Notifier:     notifier,
	}, nil
}
