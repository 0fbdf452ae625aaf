// Command dlqmanager replays dead-lettered activity events into the outbox
// and quarantines the ones that keep failing.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/config"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/logging"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/outbox"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/persistence/postgres"
	httptransport "github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("dlq manager failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	metrics := httptransport.NewMetricsServer(cfg.MetricsAddress)
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger.Named("dlq"))
	logger.Info("dlq manager running",
		zap.Duration("interval", cfg.DLQPollInterval),
		zap.Int("max_retries", cfg.DLQMaxRetries),
		zap.Int("batch_size", cfg.DLQBatchSize))
	manager.Run(ctx, cfg.DLQPollInterval, cfg.DLQBatchSize)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return metrics.Shutdown(shutdownCtx)
}
