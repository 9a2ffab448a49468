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

	"accounting-sync/config"
	"accounting-sync/internal/adapter/eventbus"
	httpHandler "accounting-sync/internal/adapter/http/handler"
	kafkaAdapter "accounting-sync/internal/adapter/messaging/kafka"
	"accounting-sync/internal/adapter/metrics"
	pgStorage "accounting-sync/internal/adapter/storage/postgres"
	redisStorage "accounting-sync/internal/adapter/storage/redis"
	"accounting-sync/internal/core/ports"
	"accounting-sync/internal/service"
	"accounting-sync/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("ACS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, "accounting-sync")

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Starting accounting sync service")

	ctx := context.Background()

	// PostgreSQL
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Redis
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.Encryption.SecretKey, cfg.Encryption.Salt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(pgStorage.NewAuditRepo(pool), log)

	// Repositories
	accountRepo := pgStorage.NewAccountRepo(pool, encSvc)
	journalRepo := pgStorage.NewJournalEntryRepo(pool, encSvc)
	orgRepo := pgStorage.NewOrganizationRepo(pool, encSvc)
	transactor := pgStorage.NewTransactor(pool)

	// Sync reconciler. Entity order is the order changes are reported in.
	syncSvc := service.NewSyncService(
		[]ports.EntityService{
			service.NewOrganizationService(orgRepo, log),
			service.NewAccountService(accountRepo, log),
			service.NewJournalEntryService(journalRepo, accountRepo, transactor, log),
		},
		redisStorage.NewSyncLock(rdb, 0),
		redisStorage.NewIdempotencyCache(rdb),
		auditSvc,
		m,
		service.SyncOptions{
			MaxOperations:  cfg.Sync.MaxOperations,
			MaxConcurrency: cfg.Sync.MaxConcurrency,
			BatchTimeout:   cfg.Sync.BatchTimeout,
			LockTTL:        cfg.Sync.LockTTL,
			LockWait:       cfg.Sync.LockWait,
			BatchCacheTTL:  cfg.Sync.BatchCacheTTL,
		},
		log,
	)

	// Kafka producer side. The writer dials lazily, so publishing simply
	// fails while the brokers are unreachable.
	writer := kafkaAdapter.NewWriter(cfg.Kafka)
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka writer")
		}
	}()
	paymentSvc := service.NewSubscriptionPaymentService(kafkaAdapter.NewEnvelopePublisher(writer), cfg.Kafka.Source, log)

	// Payment event listeners
	bus := eventbus.New()
	service.RegisterPaymentListeners(bus, m, log)

	healthCheckers := []ports.HealthChecker{
		pgStorage.NewHealthCheck(pool),
		redisStorage.NewHealthCheck(rdb),
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumerDone := make(chan struct{})

	if cfg.Kafka.Enabled {
		healthCheckers = append(healthCheckers, kafkaAdapter.NewHealthCheck(cfg.Kafka.Brokers))

		router := service.NewPaymentEventRouter(
			bus,
			redisStorage.NewProcessedEventStore(rdb),
			kafkaAdapter.NewDeadLetterWriter(writer, cfg.Kafka.DLQTopic),
			service.RouterOptions{
				MaxRetries:   cfg.Kafka.MaxRetries,
				RetryBackoff: cfg.Kafka.RetryBackoff,
				DedupTTL:     cfg.Kafka.DedupTTL,
			},
			log,
		)
		consumer := kafkaAdapter.NewConsumer(kafkaAdapter.NewReader(cfg.Kafka), router, log)

		go func() {
			defer close(consumerDone)
			log.Info().Strs("topics", cfg.Kafka.Topics).Msg("Payment event consumer started")
			if err := consumer.Run(consumerCtx); err != nil {
				log.Error().Err(err).Msg("Payment event consumer stopped")
			}
			if err := consumer.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka reader")
			}
		}()
	} else {
		close(consumerDone)
	}

	handler := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SyncSvc:        syncSvc,
		PaymentSvc:     paymentSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       auditSvc,
		HTTPMetrics:    m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		HealthCheckers: healthCheckers,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Payment event consumer did not stop in time")
	}

	log.Info().Msg("Server exited")
}
