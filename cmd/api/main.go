package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/api"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/auth"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/config"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/events"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/logging"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/observability"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/outbox"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/persistence/memory"
	mongostore "github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/persistence/mongo"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	service := domain.NewService(repo, domain.WithLogger(logger.Named("service")))

	handler := api.NewHandler(service, logger.Named("api"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, logger.Named("auth"))

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.CORS(cfg.CORSOrigin),
		httptransport.RequestLog(logger.Named("http")),
		httptransport.Instrument(observability.HTTPDuration),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("footprint api listening", zap.String("address", cfg.HTTPAddress), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// openStore builds the repository selected by cfg.StoreDriver. The returned
// func releases the store and, for postgres, waits for the outbox dispatcher.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.ActivityRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory store; activities are lost on restart")
		return memory.NewRepository(), func() {}, nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}

		if !cfg.OutboxEnabled {
			return postgres.NewRepository(pool), pool.Close, nil
		}

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		if err := producer.EnsureTopic(ctx, events.Topic, 3); err != nil {
			logger.Warn("could not ensure activity topic", zap.String("topic", events.Topic), zap.Error(err))
		}
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.Named("outbox")))
		go dispatcher.Start(ctx)

		closeFn := func() {
			dispatcher.Wait()
			_ = producer.Close()
			pool.Close()
		}
		return postgres.NewRepository(pool), closeFn, nil
	}
}
