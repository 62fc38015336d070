package main

import (
	"context"
	"fmt"
	"time"

	"github.com/callcoach/callcoach/internal/cache"
	"github.com/callcoach/callcoach/internal/config"
	"github.com/callcoach/callcoach/internal/evaluator"
	"github.com/callcoach/callcoach/internal/llm"
	"github.com/callcoach/callcoach/internal/logger"
	"github.com/callcoach/callcoach/internal/pipeline"
	"github.com/callcoach/callcoach/internal/rubric"
	"github.com/callcoach/callcoach/internal/store"
	"github.com/callcoach/callcoach/internal/telemetry"
)

const serviceVersion = "0.3.0"

// app bundles the process-lifetime collaborators. Everything is constructed
// once here and injected; nothing reaches for ambient globals.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store // nil without DATABASE_URL
	provider llm.Provider
	orch     *pipeline.Orchestrator
	cache    *cache.ResultCache

	shutdownTelemetry telemetry.Shutdown
}

// newApp wires the pipeline from configuration. requireProvider is false
// for cache-maintenance commands that never touch the LLM.
func newApp(ctx context.Context, requireProvider bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New()

	shutdown, err := telemetry.Init(ctx, cfg.OTLPEndpoint, "callcoach", serviceVersion, true)
	if err != nil {
		return nil, err
	}
	var metrics *telemetry.Metrics
	if cfg.OTLPEndpoint != "" {
		if metrics, err = telemetry.NewMetrics(); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, log: log, shutdownTelemetry: shutdown}

	if cfg.DatabaseURL != "" {
		a.store, err = store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("no database configured; results will not be persisted")
	}

	var durable cache.DurableStore
	var sink pipeline.ResultSink
	var source rubric.Source
	if a.store != nil {
		durable = a.store
		sink = a.store
		source = a.store
	}
	a.cache = cache.New(cache.NewMemoryTier(), durable, time.Duration(cfg.FastTierTTL), log, metrics)

	if requireProvider {
		llmConfig := llm.DefaultConfig()
		if cfg.Provider == llm.ProviderGemini {
			llmConfig = llm.DefaultGeminiConfig()
		}
		llmConfig.BaseURL = cfg.BaseURL

		a.provider, err = llm.NewProvider(ctx, llmConfig, cfg.APIKey)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}

		eval := evaluator.New(a.provider, evaluator.Options{
			CallTimeout: time.Duration(cfg.LLMTimeout),
		}, log, metrics)

		a.orch = pipeline.New(eval, a.cache, rubric.NewLoader(source), sink, pipeline.Options{
			MaxTokens:       cfg.MaxTokens,
			OverlapFraction: cfg.OverlapFraction,
			MaxConcurrency:  cfg.MaxConcurrency,
			OverallBudget:   time.Duration(cfg.OverallBudget),
		}, log, metrics)
	}

	return a, nil
}

// Close tears the process-lifetime clients down
func (a *app) Close(ctx context.Context) {
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.shutdownTelemetry != nil {
		_ = a.shutdownTelemetry(ctx)
	}
}
