package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/solar-ledger/internal/api"
	"github.com/ayo6706/solar-ledger/internal/config"
	"github.com/ayo6706/solar-ledger/internal/db"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/idempotency"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/ayo6706/solar-ledger/internal/repository/memstore"
	"github.com/ayo6706/solar-ledger/internal/service"
	"github.com/ayo6706/solar-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// storage is what the services and the health check need from a backend.
type storage interface {
	service.QueryStore
	Ping(ctx context.Context) error
}

// Run bootstraps the HTTP server, outbox relay and reconciliation schedule,
// blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var cache redis.Cmdable
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		cache = client
	}

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("init event publisher: %w", err)
	}
	defer publisher.Close()

	services := buildServices(cfg, store)
	idemStore := idempotency.NewStore(cache, store.Queries(), cfg.IdempotencyTTL)

	outboxWorker := worker.NewOutboxWorker(service.NewOutboxService(store, publisher)).
		WithPollInterval(cfg.OutboxPollInterval).
		WithBatchSize(cfg.OutboxBatchSize)
	stopOutbox := outboxWorker.Run(ctx)

	reconWorker := worker.NewReconciliationWorker(services.Reconciliation).
		WithSchedule(cfg.ReconciliationSchedule).
		WithLocation(cfg.ReconciliationLocation)
	stopRecon, err := reconWorker.Run(ctx)
	if err != nil {
		stopOutbox()
		return fmt.Errorf("start reconciliation worker: %w", err)
	}

	router := api.NewRouter(cfg, logger, store, idemStore, cache, services)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("storage", cfg.StorageDriver),
			zap.String("broker", cfg.Events.Broker),
		)
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping workers")
	stopRecon()
	stopOutbox()

	logger.Info("shutdown complete")
	return runErr
}

func buildServices(cfg *config.Config, store service.QueryStore) api.Services {
	rules := cfg.Ledger
	ledger := service.NewLedgerService(store)
	referrals := service.NewReferralService(store, ledger, rules.ReferralBonus)
	deposits := service.NewDepositService(store, ledger, rules.MinDeposit)
	return api.Services{
		Accounts:       service.NewAccountService(store, referrals),
		Deposits:       deposits,
		Withdrawals:    service.NewWithdrawalService(store, ledger, rules.MinWithdrawal, rules.WithdrawalFeeRate, rules.WithdrawalWindow),
		Purchases:      service.NewPurchaseService(store, ledger, rules.PurchaseLimits),
		Ledger:         ledger,
		Audit:          service.NewAuditService(store),
		Reconciliation: service.NewReconciliationService(store),
		Webhooks:       service.NewWebhookService(deposits, cfg.WebhookHMACKey, cfg.WebhookSkipSignature),
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return repository.NewStore(pool), pool.Close, nil
}

func newPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		return events.NewRabbitMQPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	case config.BrokerKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return events.NewLogPublisher(logger), nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
