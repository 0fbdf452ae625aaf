// Command consumer reads activity events from Kafka and appends them to the
// activity_event_log audit table.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/config"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/consumer"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/logging"
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
		logger.Fatal("consumer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if len(cfg.ConsumerTopics) == 0 {
		return errors.New("no consumer topics configured")
	}

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

	handler := consumer.NewPersistenceHandler(pool, logger.Named("audit"))

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.ConsumerGroupID, topic)
		log := logger.With(zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(log))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("processor stopped", zap.Error(err))
			}
		}()
	}
	logger.Info("consumer running",
		zap.Strings("topics", cfg.ConsumerTopics),
		zap.String("metrics_address", cfg.MetricsAddress))

	<-ctx.Done()
	logger.Info("consumer shutting down")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return metrics.Shutdown(shutdownCtx)
}
