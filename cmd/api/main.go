package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/registrationhub/internal/config"
	"github.com/geocoder89/registrationhub/internal/db"
	"github.com/geocoder89/registrationhub/internal/events"
	httpx "github.com/geocoder89/registrationhub/internal/http"
	"github.com/geocoder89/registrationhub/internal/observability"
	"github.com/geocoder89/registrationhub/internal/queue/kafka"
	"github.com/geocoder89/registrationhub/internal/queue/redisclient"
	"github.com/geocoder89/registrationhub/internal/queue/relay"
	"github.com/geocoder89/registrationhub/internal/repo/postgres"
	"github.com/geocoder89/registrationhub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "registrationhub-api"

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env, serviceName)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	schemaCtx, schemaCancel := config.WithTimeout(10 * time.Second)
	err = db.EnsureSchema(schemaCtx, pool)
	schemaCancel()
	if err != nil {
		log.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	sender, broker, closeBroker, err := newSender(ctx, cfg)
	if err != nil {
		log.Error("broker setup failed", "broker", cfg.Broker, "err", err)
		os.Exit(1)
	}
	defer closeBroker()

	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)
	outboxRepo := postgres.NewOutboxRepo(pool, prom)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	publisher := events.NewPublisher(sender, cfg.NotificationTopic)
	outboxRelay := relay.New(relay.Config{
		PollInterval:   cfg.OutboxPollInterval,
		WorkerID:       workerID,
		Batch:          cfg.OutboxBatch,
		PublishTimeout: cfg.PublishTimeout,
	}, outboxRepo, publisher, log, prom)

	svc := service.NewRegistrations(registrationsRepo, outboxRepo,
		service.WithWaker(outboxRelay),
		service.WithTopic(cfg.NotificationTopic),
		service.WithLogger(log),
	)

	// set up routers with the log
	router := httpx.NewRouter(log, httpx.RouterDeps{
		Env:           cfg.Env,
		ServiceName:   serviceName,
		Registrations: svc,
		Ping: func(ctx context.Context) error {
			if err := registrationsRepo.Ping(ctx); err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if err := broker.Ping(ctx); err != nil {
				return fmt.Errorf("broker: %w", err)
			}
			return nil
		},
		Prom: prom,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		log.Info("outbox relay starting", "worker_id", workerID, "topic", cfg.NotificationTopic)
		if err := outboxRelay.Run(ctx); err != nil {
			log.Error("outbox relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "broker", cfg.Broker)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		shutdownCtx, shutdownCancel := config.WithTimeout(10 * time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		// requests are drained, so nothing new reaches the outbox
		cancel()
		<-relayDone

		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// newSender builds the broker client selected by BROKER.
func newSender(ctx context.Context, cfg config.Config) (events.Sender, pinger, func(), error) {
	switch cfg.Broker {
	case config.BrokerRedis:
		rc := redisclient.New(redisclient.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			StreamMaxLen: cfg.StreamMaxLen,
		})
		return rc, rc, func() { _ = rc.Close() }, nil

	default:
		cl, err := kafka.NewProducerClient(kafka.Config{
			Brokers:         cfg.KafkaBrokers,
			ClientID:        serviceName,
			DeliveryTimeout: cfg.PublishTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}

		topicCtx, topicCancel := context.WithTimeout(ctx, 10*time.Second)
		defer topicCancel()

		if err := kafka.EnsureTopic(topicCtx, cl, cfg.NotificationTopic, 3, 1); err != nil {
			cl.Close()
			return nil, nil, nil, err
		}

		sender := kafka.NewSender(cl)
		return sender, sender, cl.Close, nil
	}
}
