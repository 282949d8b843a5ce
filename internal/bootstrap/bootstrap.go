// Package bootstrap assembles the application from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mzwaMoj/bedrock-rag/internal/config"
	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/core/ports"
	"github.com/mzwaMoj/bedrock-rag/internal/core/usecase"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/bedrock"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/catalog/postgres"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/chunking"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/loader"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/queue/nats"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/resilience"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/vector/memory"
	"github.com/mzwaMoj/bedrock-rag/internal/observability/metrics"
)

const ServiceName = "bedrock-rag-api"

type App struct {
	Config  config.Config
	Metrics *metrics.ServerMetrics

	Pipeline *usecase.Pipeline
	Queue    ports.ReindexQueue

	closeFn func()
}

// New wires the full dependency graph. Postgres and NATS are optional
// collaborators: if either is unreachable the service still starts, with
// the catalog disabled or reindex commands handled in-process.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	serverMetrics := metrics.NewServerMetrics(ServiceName)

	model, err := domain.EmbeddingModelByID(cfg.EmbeddingModelID)
	if err != nil {
		return nil, fmt.Errorf("resolve embedding model: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.MaxRetries,
		RetryInitialBackoff: 500 * time.Millisecond,
		RetryMaxBackoff:     10 * time.Second,
		RetryMultiplier:     2.0,
		BreakerEnabled:      true,
	})

	runtimeClient, err := bedrock.NewRuntimeClient(ctx, bedrock.ClientConfig{
		Region:  cfg.AWSRegion,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init bedrock client: %w", err)
	}

	embedder := bedrock.NewEmbedder(runtimeClient, model, executor, cfg.EmbedConcurrency, func(modelID string) {
		serverMetrics.RecordEmbeddingFallback(ServiceName, modelID)
	})
	generator := bedrock.NewGenerator(runtimeClient, cfg.GenerationModelID, executor, cfg.MaxOutputTokens, cfg.TopP)

	engine := usecase.NewQueryEngine(embedder, generator, cfg.RoleInstruction, cfg.Temperature, cfg.TopK)

	opts := []usecase.PipelineOption{
		usecase.WithRebuildObserver(func(state domain.PipelineState, took time.Duration) {
			serverMetrics.RecordPipelineRun(ServiceName, state, took)
		}),
	}

	closers := make([]func(), 0, 2)
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			slog.Warn("document catalog disabled, postgres unreachable", "error", err)
		} else {
			catalog := postgres.NewCatalog(db)
			if err := catalog.EnsureSchema(ctx); err != nil {
				slog.Warn("document catalog disabled, schema bootstrap failed", "error", err)
				_ = db.Close()
			} else {
				opts = append(opts, usecase.WithCatalog(catalog))
				closers = append(closers, func() { _ = db.Close() })
			}
		}
	}

	var queue ports.ReindexQueue
	if cfg.NATSURL != "" {
		natsQueue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			slog.Warn("reindex queue disabled, nats unreachable", "error", err)
		} else {
			queue = natsQueue
			closers = append(closers, natsQueue.Close)
		}
	}

	pipeline := usecase.NewPipeline(
		loader.NewDirectorySource(cfg.DataDir),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		memory.NewBuilder(model.Dimension),
		engine,
		opts...,
	)

	return &App{
		Config:   cfg,
		Metrics:  serverMetrics,
		Pipeline: pipeline,
		Queue:    queue,
		closeFn: func() {
			for _, closer := range closers {
				closer()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
