package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-studio/internal/flows"
	"github.com/sells-group/lead-studio/internal/leads"
	"github.com/sells-group/lead-studio/internal/llm"
	"github.com/sells-group/lead-studio/internal/resilience"
	"github.com/sells-group/lead-studio/internal/store"
	"github.com/sells-group/lead-studio/internal/workflow"
	"github.com/sells-group/lead-studio/pkg/anymailfinder"
	"github.com/sells-group/lead-studio/pkg/perplexity"
)

// studioEnv holds the store, services and provider clients needed by the
// serve and leads commands.
type studioEnv struct {
	Store  *store.PostgresStore
	Leads  *leads.Service
	Flows  *flows.Service
	gemini *llm.Gemini // may be nil
}

// Close releases resources held by the environment.
func (e *studioEnv) Close() {
	if e.gemini != nil {
		_ = e.gemini.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (*store.PostgresStore, error) {
	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initStudio validates config for mode, opens and migrates the store, and
// wires the lead state machine, LLM providers, email verifier and flows.
// Callers should defer env.Close().
func initStudio(ctx context.Context, mode string) (*studioEnv, error) {
	if err := cfg.Validate(mode); err != nil {
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

	env := &studioEnv{Store: st}
	env.Leads = leads.NewService(st, cfg.Store.BatchMode)

	router := &llm.Router{}
	if cfg.Gemini.Key != "" {
		g, err := llm.NewGemini(ctx, cfg.Gemini.Key, llm.NewGate("gemini", cfg.LLM))
		if err != nil {
			env.Close()
			return nil, err
		}
		env.gemini = g
		router.Gemini = g
	}
	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		router.Perplexity = llm.NewPerplexity(client, llm.NewGate("perplexity", cfg.LLM))
	}
	if router.Gemini == nil && router.Perplexity == nil {
		zap.L().Warn("no llm provider configured, prompt nodes will fail")
	}

	verifier := workflow.NewEmailVerifier(
		func(key string) anymailfinder.Client {
			return anymailfinder.NewClient(key, anymailfinder.WithBaseURL(cfg.Anymailfinder.BaseURL))
		},
		cfg.Anymailfinder.Key,
		verifierGate(),
		cfg.Anymailfinder.Concurrency,
	)

	defaultModel := cfg.Gemini.DefaultModel
	exec := workflow.NewExecutor(env.Leads, router, verifier, defaultModel)
	env.Flows = flows.New(flows.Config{
		Leads:                env.Leads,
		Versions:             st,
		Runner:               workflow.NewRunner(exec, st),
		Exec:                 exec,
		Verifier:             verifier,
		Gen:                  router,
		ChatModel:            defaultModel,
		VariationConcurrency: cfg.LLM.VariationConcurrency,
	})

	return env, nil
}

// verifierGate paces email verification at the configured rate with no
// burst, and shares the LLM breaker and retry tuning.
func verifierGate() *resilience.Gate {
	retry := resilience.DefaultRetryConfig()
	if cfg.LLM.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.LLM.RetryAttempts
	}
	return &resilience.Gate{
		Name:    "anymailfinder",
		Limiter: resilience.NewLimiter(cfg.Anymailfinder.RatePerSec, 1),
		Breaker: resilience.NewCircuitBreaker("anymailfinder", resilience.BreakerConfig{
			FailureThreshold: cfg.LLM.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.LLM.BreakerResetSecs) * time.Second,
		}),
		Retry:   retry,
		Timeout: 30 * time.Second,
	}
}
