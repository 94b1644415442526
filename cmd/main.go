package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/api"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/config"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/events"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/gateway"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/lock"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/repository"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/service"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/signature"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("cinetpay-gateway", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	logger := telemetry.Logger
	logger.Info("Starting CinetPay Gateway")

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	verifier, err := signature.NewVerifier(cfg.CinetPaySecret)
	if err != nil {
		logger.Fatal("Failed to initialize signature verifier", zap.Error(err))
	}

	// Initialize ledger
	ledger, closeLedger := openLedger(cfg, logger)
	defer closeLedger()

	// Connect to Redis
	var locker interfaces.Locker = lock.NoopLocker{}
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, logger)
	} else {
		logger.Warn("REDIS_URL not set, notifications are serialized by the ledger only")
	}

	// Connect to Kafka
	var publisher interfaces.EventPublisher = events.LogPublisher{Logger: logger}
	if cfg.KafkaBrokers != "" {
		kafkaWriter := events.NewKafkaWriter(cfg.KafkaBrokers)
		defer kafkaWriter.Close()
		publisher = events.NewKafkaPublisher(kafkaWriter)
	}

	// Connect to NATS
	var alerter interfaces.Alerter = events.LogAlerter{Logger: logger}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		alerter = events.NewNatsAlerter(nc)
	}

	metrics := telemetry.NewMetrics("cinetpay_gateway", prometheus.DefaultRegisterer)

	client := gateway.NewClient(gateway.Config{
		APIKey:     cfg.CinetPayAPIKey,
		SiteID:     cfg.CinetPaySiteID,
		BaseURL:    cfg.GatewayBaseURL,
		Timeout:    cfg.GatewayTimeout,
		MaxRetries: cfg.GatewayMaxRetries,
	}, logger, metrics)

	// Initialize services
	notification := service.NewNotificationService(service.NotificationDeps{
		Verifier:  verifier,
		Ledger:    ledger,
		Checker:   client,
		Locker:    locker,
		Publisher: publisher,
		Alerter:   alerter,
		LockTTL:   cfg.LockTTL,
		Logger:    logger,
		Metrics:   metrics,
	})
	// The customer is waiting on the return page; one round trip only.
	returnPage := service.NewReturnService(client.SingleAttempt(), logger)
	initiator := service.NewPaymentInitiator(ledger, client, cfg.AppBaseURL, logger)

	r := api.NewRouter(api.Services{
		Ledger:       ledger,
		Notification: notification,
		Return:       returnPage,
		Initiator:    initiator,
	})

	// Setup HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("CinetPay Gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func openLedger(cfg *config.Config, logger *zap.Logger) (interfaces.Ledger, func()) {
	if cfg.LedgerDriver == "memory" {
		logger.Warn("Using in-memory ledger, transactions are lost on restart")
		return repository.NewMemoryLedger(), func() {}
	}

	dialect := repository.DialectPostgres
	if cfg.LedgerDriver == "sqlite" {
		dialect = repository.DialectSQLite
	}

	db, err := sql.Open(cfg.LedgerDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if dialect == repository.DialectSQLite {
		// SQLite allows one writer; a single connection keeps the conditional UPDATE serialized.
		db.SetMaxOpenConns(1)
	}

	ledger, err := repository.NewSQLLedger(db, dialect)
	if err != nil {
		logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}
	if err := ledger.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	return ledger, func() { db.Close() }
}
