package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/catalog"
	"github.com/sells-group/lead-engine/internal/monitoring"
	"github.com/sells-group/lead-engine/internal/pipeline"
	"github.com/sells-group/lead-engine/internal/store"
	anthropicpkg "github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/websearch"
)

// pipelineEnv holds all initialized clients and the pipeline needed by the
// process/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Catalog  catalog.Client
	Pipeline *pipeline.Pipeline
	Recorder *monitoring.Recorder
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if c, ok := pe.Catalog.(*catalog.PostgresCatalog); ok {
		c.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the run store configured by store.driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, all API clients, and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required")
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

	// Search providers cascade in order; verification degrades to low
	// confidence when none is configured.
	var providers []websearch.Client
	if cfg.Jina.Key != "" {
		providers = append(providers, websearch.NewJina(cfg.Jina.Key,
			websearch.WithJinaBaseURL(cfg.Jina.SearchBaseURL)))
	}
	if cfg.Perplexity.Key != "" {
		providers = append(providers, websearch.NewPerplexity(cfg.Perplexity.Key,
			websearch.WithPerplexityBaseURL(cfg.Perplexity.BaseURL),
			websearch.WithPerplexityModel(cfg.Perplexity.Model)))
	}
	var searchClient websearch.Client
	if len(providers) > 0 {
		searchClient = websearch.NewWaterfall(providers...)
	} else {
		zap.L().Warn("no search provider configured, fact verification will run without evidence")
		searchClient = &pipeline.StubSearchClient{}
	}

	var catalogClient catalog.Client
	if cfg.Catalog.DatabaseURL != "" {
		catalogClient, err = catalog.NewPostgres(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "init catalog")
		}
	} else {
		zap.L().Warn("catalog not configured, property lookups will return no matches")
		catalogClient = &pipeline.StubCatalogClient{}
	}

	recorder := monitoring.NewRecorder()

	p := pipeline.New(pipeline.Deps{
		AI:        anthropicClient,
		Catalog:   catalogClient,
		Search:    searchClient,
		Store:     st,
		Metrics:   recorder,
		Anthropic: cfg.Anthropic,
		Pipeline:  cfg.Pipeline,
	})

	return &pipelineEnv{
		Store:    st,
		Catalog:  catalogClient,
		Pipeline: p,
		Recorder: recorder,
	}, nil
}
