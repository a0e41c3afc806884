// Package relay moves committed outbox messages to the broker.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/outbox"
	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/geocoder89/registrationhub/internal/events"
	"github.com/geocoder89/registrationhub/internal/observability"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("registrationhub/relay")

type Store interface {
	ClaimNext(ctx context.Context, workerID string) (outbox.Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStale(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Publisher interface {
	PublishCreated(ctx context.Context, route events.Route, ev registration.CreatedEvent) error
}

type Config struct {
	PollInterval time.Duration
	WorkerID     string
	// Batch bounds how many messages one tick drains.
	Batch   int
	LockTTL time.Duration
	// PublishTimeout bounds one broker send so an unreachable broker ends in a
	// reschedule instead of holding the claimed row past LockTTL.
	PublishTimeout time.Duration
	Backoff        func(attempt int) time.Duration
}

type Relay struct {
	cfg   Config
	store Store
	pub   Publisher
	log   *slog.Logger
	prom  *observability.Prom
	wake  chan struct{}
}

func New(cfg Config, store Store, pub Publisher, log *slog.Logger, prom *observability.Prom) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialBackoff
	}
	if log == nil {
		log = slog.Default()
	}

	return &Relay{
		cfg:   cfg,
		store: store,
		pub:   pub,
		log:   log.With("component", "outbox_relay", "worker_id", cfg.WorkerID),
		prom:  prom,
		wake:  make(chan struct{}, 1),
	}
}

// Wake asks the relay to drain now instead of waiting for the next tick. It never blocks.
func (r *Relay) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	staleTicker := time.NewTicker(r.cfg.LockTTL)
	defer staleTicker.Stop()

	r.requeueStale(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay received shutdown signal")
			return nil
		case <-staleTicker.C:
			r.requeueStale(ctx)
		case <-ticker.C:
			r.Drain(ctx)
		case <-r.wake:
			r.Drain(ctx)
		}
	}
}

// Drain relays up to Batch messages and stops early when the outbox is empty.
func (r *Relay) Drain(ctx context.Context) int {
	n := 0
	for n < r.cfg.Batch && ctx.Err() == nil {
		processed, err := r.ProcessOne(ctx)
		if err != nil {
			r.log.ErrorContext(ctx, "outbox relay step failed", "err", err)
			return n
		}
		if !processed {
			return n
		}
		n++
	}
	return n
}

func (r *Relay) requeueStale(ctx context.Context) {
	n, err := r.store.RequeueStale(ctx, r.cfg.LockTTL)
	if err != nil {
		if ctx.Err() == nil {
			r.log.ErrorContext(ctx, "requeue stale outbox messages failed", "err", err)
		}
		return
	}
	if n > 0 {
		r.log.Warn("requeued stale outbox messages", "count", n)
	}
}
