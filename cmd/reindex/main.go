// Command reindex publishes a pipeline rebuild command to the queue.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mzwaMoj/bedrock-rag/internal/config"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/queue/nats"
	"github.com/mzwaMoj/bedrock-rag/internal/observability/logging"
)

func main() {
	reason := flag.String("reason", "manual reindex", "why the rebuild was requested, recorded in server logs")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("bedrock-rag-reindex", cfg.LogLevel))

	retry := false
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		RetryOnFailedConnect: &retry,
	})
	if err != nil {
		slog.Error("connect nats", "url", cfg.NATSURL, "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := queue.PublishReindex(ctx, *reason); err != nil {
		slog.Error("publish reindex command", "error", err)
		os.Exit(1)
	}
	slog.Info("reindex command published", "subject", cfg.NATSSubject, "reason", *reason)
}
