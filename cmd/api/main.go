package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/mzwaMoj/bedrock-rag/internal/adapters/http"
	"github.com/mzwaMoj/bedrock-rag/internal/bootstrap"
	"github.com/mzwaMoj/bedrock-rag/internal/config"
	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(bootstrap.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Initial build. An empty data directory is fine: the server comes
	// up answering bypass queries and a reindex can fill the index later.
	if err := app.Pipeline.Run(ctx); err != nil {
		if !domain.IsKind(err, domain.ErrNoData) {
			slog.Error("initial pipeline run failed", "error", err)
		}
	}

	if app.Queue != nil {
		go func() {
			err := app.Queue.SubscribeReindex(ctx, func(handlerCtx context.Context, reason string) error {
				slog.Info("reindex command received", "reason", reason)
				return app.Pipeline.Run(handlerCtx)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("reindex subscription ended", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(
		ctx,
		app.Pipeline,
		app.Pipeline,
		app.Queue,
		app.Metrics,
		bootstrap.ServiceName,
		cfg.GenerationModelID,
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
