package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guizzs26/watch-crm/internal/broker"
	"github.com/Guizzs26/watch-crm/internal/config"
	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/notify"
	"github.com/Guizzs26/watch-crm/internal/provider"
	"github.com/Guizzs26/watch-crm/internal/service"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const drainTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	defer infra.CloseLogger()
	slog.SetDefault(logger)

	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("🔔 Notifier initializing...",
		"db_driver", cfg.DBDriver,
		"provider", cfg.ProviderKind,
		"interval", cfg.NotifyInterval,
		"max_attempts", cfg.NotifyMaxAttempts,
	)

	store, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, logger,
		db.WithQueryTimeout(cfg.QueryTimeout),
		db.WithPrimaryKey(cfg.DBPrimaryKey),
		db.WithUpdatedAtColumn(cfg.DBUpdatedAtColumn),
	)
	if err != nil {
		logger.Error("CRITICAL: Database connection failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		logger.Error("CRITICAL: Provider setup failed", "kind", cfg.ProviderKind, "error", err)
		os.Exit(1)
	}
	defer closeSender()

	retrier := notify.NewRetrier(cfg.NotifyMaxAttempts, cfg.NotifyBackoffBase, logger)

	var notifier *service.NotificationService
	queue := notify.NewQueue(logger,
		notify.WithDelay(cfg.NotifyInterval),
		notify.WithDeadLetterCapacity(cfg.NotifyDeadLetterCap),
		notify.WithResultHook(func(r notify.JobResult) { notifier.RecordResult(r) }),
	)
	notifier = service.NewNotificationService(store, queue, sender, retrier, logger)

	if cfg.AdminDestination == "" {
		logger.Warn("ADMIN_DESTINATION is empty, intake alerts are disabled")
	}
	handlers := broker.Handlers{
		Notifications: notifier,
		Intake:        service.NewIntakeService(store, notifier, cfg.AdminDestination, logger),
		Catalog:       service.NewCatalogService(store, logger),
	}

	go startObservabilityServer(cfg.MetricsPort, queue, logger)

	consume(ctx, cfg, handlers, logger)

	logger.Info("⏳ Waiting for queued notifications to drain", "pending", queue.Len(), "timeout", drainTimeout)
	select {
	case <-queue.Drained():
		logger.Info("✅ Queue drained, notifier stopped")
	case <-time.After(drainTimeout):
		logger.Warn("Drain timeout reached, pending notifications are lost", "pending", queue.Len())
	}
}

// consume keeps an intake consumer attached until ctx is done, reconnecting with backoff
func consume(ctx context.Context, cfg *config.Config, h broker.Handlers, logger *slog.Logger) {
	connBackoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Shutdown signal received")
			return
		default:
			consumer, err := broker.NewIntakeConsumer(cfg.RabbitMQURL, cfg.NotifyIntakeQueue, h, logger)
			if err != nil {
				wait := connBackoff.Next()
				logger.Error("RabbitMQ connection failed, retrying...",
					"wait_duration", wait,
					"error", err,
				)

				if infra.SleepWithContext(ctx, wait) != nil {
					return
				}
				continue
			}

			connBackoff.Reset()
			logger.Info("✅ Connected to Broker. Listening for intake messages...")

			if err := consumer.Listen(ctx); err != nil {
				logger.Error("⚠️ Consumer connection lost", "error", err)
			}

			consumer.Close()
		}
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) (notify.Sender, func(), error) {
	switch cfg.ProviderKind {
	case "http":
		p, err := provider.NewHTTPProvider(provider.HTTPConfig{
			Name:    cfg.ProviderName,
			URL:     cfg.ProviderURL,
			Token:   cfg.ProviderToken,
			Timeout: cfg.ProviderTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("HTTP provider ready", "name", p.Name(), "url", cfg.ProviderURL)
		return p, func() {}, nil
	case "amqp":
		p, err := broker.NewPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case "log":
		return provider.NewLogProvider(logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider kind %q", cfg.ProviderKind)
	}
}

func startObservabilityServer(port string, queue *notify.Queue, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "NOTIFIER ALIVE pending=%d dead_letters=%d", queue.Len(), len(queue.DeadLetters()))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("📊 Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
