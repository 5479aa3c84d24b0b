package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/cache"
	"github.com/lodgescout/resolver-cli/internal/crawl"
	"github.com/lodgescout/resolver-cli/internal/extract"
	"github.com/lodgescout/resolver-cli/internal/pipeline"
	"github.com/lodgescout/resolver-cli/internal/rank"
	"github.com/lodgescout/resolver-cli/internal/store"
	anthropicpkg "github.com/lodgescout/resolver-cli/pkg/anthropic"
	"github.com/lodgescout/resolver-cli/pkg/directory"
	"github.com/lodgescout/resolver-cli/pkg/geodata"
	"github.com/lodgescout/resolver-cli/pkg/websearch"
)

// pipelineEnv holds the initialized store, clients, and pipeline shared
// by the resolve/status/export/serve commands.
type pipelineEnv struct {
	Cache    *cache.Manager
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initEnv wires the store, API clients, and pipeline from config.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	cm, err := cache.NewManager(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var llm anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		llm = anthropicpkg.NewClient(cfg.Anthropic.Key, cfg.Anthropic.Model)
	} else {
		zap.L().Info("RESOLVER_ANTHROPIC_KEY not set, LLM tie-break and extraction disabled")
	}

	geoClient := geodata.NewClient(
		cfg.Crawl.UserAgent,
		time.Duration(cfg.Geodata.StageBudgetSec)*time.Second,
		geodata.WithNominatimURL(cfg.Geodata.NominatimURL),
		geodata.WithOverpassURL(cfg.Geodata.OverpassURL),
		geodata.WithRadius(cfg.Geodata.RadiusStartKm*1000, cfg.Geodata.RadiusMaxKm*1000, 2),
	)

	dirClient := directory.NewClient(cfg.Directory.Key, 15*time.Second,
		directory.WithBaseURL(cfg.Directory.BaseURL))
	if !dirClient.Enabled() {
		zap.L().Debug("RESOLVER_DIRECTORY_KEY not set, structured directory lookups disabled")
	}

	lists, err := rank.LoadWordLists(cfg.Rank.WordListsPath)
	if err != nil {
		zap.L().Warn("word list overrides unavailable, using defaults", zap.Error(err))
	}

	fetcher := crawl.NewFetcher(
		time.Duration(cfg.Crawl.TimeoutSecs)*time.Second,
		cfg.Crawl.UserAgent,
		cfg.Crawl.RatePerSec,
	)
	crawler := crawl.NewCrawler(fetcher, cfg.Crawl.MaxPages, cfg.Crawl.MaxDepth)

	// The search client reuses the aggregator list so blocked domains
	// never reach the scoring loop in the first place.
	searchClient := websearch.NewClient(
		cfg.Search.Key,
		time.Duration(cfg.Search.TimeoutSecs)*time.Second,
		websearch.WithBaseURL(cfg.Search.BaseURL),
		websearch.WithBlockedRootDomains(lists.Aggregators),
	)

	engine := rank.NewEngine(searchClient, dirClient, fetcher, llm, lists, cfg.Rank)

	var llmExtractor *extract.LLMExtractor
	if llm != nil {
		llmExtractor = extract.NewLLMExtractor(llm,
			int64(cfg.Anthropic.MaxTokens), cfg.Anthropic.Temperature)
	}
	consensus := extract.NewConsensus(llmExtractor)

	pipe := pipeline.New(cm, st, geoClient, engine, crawler, consensus, dirClient,
		cfg.Pipeline, time.Duration(cfg.Crawl.CacheTTLHours)*time.Hour)

	return &pipelineEnv{Cache: cm, Store: st, Pipeline: pipe}, nil
}

// initStore picks Postgres when a database URL is configured and falls
// back to the local SQLite file otherwise.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL != "" {
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		zap.L().Info("using postgres store")
		return st, nil
	}
	st, err := store.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, eris.Wrap(err, "init sqlite store")
	}
	zap.L().Info("using sqlite store", zap.String("path", cfg.Store.SQLitePath))
	return st, nil
}
