package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hireloop/talent-cli/internal/cost"
	"github.com/hireloop/talent-cli/internal/pipeline"
	"github.com/hireloop/talent-cli/internal/stage"
	"github.com/hireloop/talent-cli/internal/store"
	"github.com/hireloop/talent-cli/pkg/inference"
)

// pipelineEnv holds the initialized store and executor needed by the
// generate/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Executor *pipeline.Executor
	Quota    *pipeline.QuotaGuard
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, the inference client, and the stage
// executor. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if err := stage.ValidateDAG(); err != nil {
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

	client := inference.NewClient(cfg.Anthropic.Key,
		inference.WithRateLimit(cfg.Anthropic.RequestsPerSec, cfg.Anthropic.Burst),
	)

	calc := cost.NewCalculator(cost.DefaultRates())
	if !cfg.Pricing.Empty() {
		rates := cost.Rates{Anthropic: map[string]cost.ModelRate{}}
		for model, p := range cfg.Pricing.Anthropic {
			rates.Anthropic[model] = cost.ModelRate{Input: p.Input, Output: p.Output}
		}
		calc = cost.NewCalculator(rates)
	}

	gateway := pipeline.NewGateway(client, cfg.Anthropic.Model)
	quota := pipeline.NewQuotaGuard(st, cfg.Quota.Limits, cfg.Quota.DefaultDailyLimit)
	audit := pipeline.NewAuditLogger(st)

	return &pipelineEnv{
		Store:    st,
		Executor: pipeline.NewExecutor(st, gateway, quota, audit, calc),
		Quota:    quota,
	}, nil
}
