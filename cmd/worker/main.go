package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/registrationhub/internal/config"
	"github.com/geocoder89/registrationhub/internal/db"
	"github.com/geocoder89/registrationhub/internal/notifications"
	"github.com/geocoder89/registrationhub/internal/observability"
	"github.com/geocoder89/registrationhub/internal/queue/kafka"
	"github.com/geocoder89/registrationhub/internal/queue/redisclient"
	"github.com/geocoder89/registrationhub/internal/repo/postgres"
	"github.com/geocoder89/registrationhub/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "registrationhub-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env, serviceName)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OtelEndpoint, cfg.OtelEnabled)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL, cfg.DB.MaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.DefaultRegisterer)
	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
	)

	processor := worker.NewProcessor(registrationsRepo, notifier, worker.Config{
		Delay: cfg.NotificationDelay(),
	}, log, prom)

	workerID := cfg.ConsumerName

	consume, broker, closeBroker, err := newConsumer(ctx, cfg, workerID, log, processor)
	if err != nil {
		log.Error("broker setup failed", "broker", cfg.Broker, "err", err)
		os.Exit(1)
	}
	defer closeBroker()

	ready := &worker.Readiness{}
	healthSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler: worker.HealthRouter(ready, map[string]worker.Pinger{
			"db":     registrationsRepo,
			"broker": broker,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started",
		"worker_id", workerID,
		"broker", cfg.Broker,
		"topic", cfg.NotificationTopic,
		"group", cfg.ConsumerGroup,
		"delay", cfg.NotificationDelay(),
	)

	if err := consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", "err", err)
	}

	ready.ShutDown()

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("worker health server shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
}

// newConsumer wires the subscriber selected by BROKER to the processor.
func newConsumer(ctx context.Context, cfg config.Config, workerID string, log *slog.Logger, p *worker.Processor) (func(context.Context) error, worker.Pinger, func(), error) {
	switch cfg.Broker {
	case config.BrokerRedis:
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.ConsumerConcurrency + 2,
		})

		sub := redisclient.NewStreamSubscriber(rc, redisclient.StreamConfig{
			Stream:      cfg.NotificationTopic,
			Group:       cfg.ConsumerGroup,
			Consumer:    workerID,
			Concurrency: cfg.ConsumerConcurrency,
			// a handler may hold a message for the whole notification delay
			ClaimMinIdle:  cfg.ClaimMinIdle(),
			ClaimInterval: cfg.ClaimInterval,
		}, log)

		if err := sub.EnsureGroup(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, nil, err
		}

		consume := func(ctx context.Context) error { return sub.Consume(ctx, p.Handle) }
		return consume, sub, func() { _ = rc.Close() }, nil

	default:
		sub, err := kafka.NewSubscriber(kafka.Config{
			Brokers:  cfg.KafkaBrokers,
			ClientID: serviceName,
			Topic:    cfg.NotificationTopic,
			Group:    cfg.ConsumerGroup,
		}, cfg.ConsumerConcurrency, log)
		if err != nil {
			return nil, nil, nil, err
		}

		consume := func(ctx context.Context) error { return sub.Consume(ctx, p.Handle) }
		return consume, sub, sub.Close, nil
	}
}
