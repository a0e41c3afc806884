// Package worker consumes registration-created events and sends the delayed notification.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/geocoder89/registrationhub/internal/notifications"
	"github.com/geocoder89/registrationhub/internal/observability"
)

//go:generate mockgen -source=processor.go -destination=mocks/store_mock.go -package=mocks

// Store flips a registration to PROCESSED without touching the columns a
// concurrent PATCH may be writing. A missing row yields registration.ErrNotFound.
type Store interface {
	MarkProcessed(ctx context.Context, id int64, at time.Time) (registration.Registration, error)
}

type Config struct {
	// Delay is the minimum age of a registration before it is notified.
	Delay time.Duration
	Clock func() time.Time
	// After is the timer used for waits; tests swap it for an instant one.
	After func(d time.Duration) <-chan time.Time
}

type Processor struct {
	store    Store
	notifier notifications.Notifier
	cfg      Config
	log      *slog.Logger
	prom     *observability.Prom
}

func NewProcessor(store Store, notifier notifications.Notifier, cfg Config, log *slog.Logger, prom *observability.Prom) *Processor {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if log == nil {
		log = slog.Default()
	}

	return &Processor{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With("component", "notification_consumer"),
		prom:     prom,
	}
}

// OnCreated holds the event until it is Delay old, notifies the registrant and
// marks the registration processed. A registration deleted in the meantime is
// still notified but nothing is written back.
func (p *Processor) OnCreated(ctx context.Context, ev registration.CreatedEvent) error {
	wait := WaitFor(p.cfg.Clock(), ev.CreatedAt, p.cfg.Delay)
	p.prom.ObserveNotificationWait(wait)

	if wait > 0 {
		p.log.DebugContext(ctx, "holding notification", "registration_id", ev.RegistrationID, "wait", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.cfg.After(wait):
		}
	}

	err := p.notifier.SendRegistrationNotification(ctx, notifications.Input{
		RegistrationID: ev.RegistrationID,
		Email:          ev.Email,
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	if _, err := p.store.MarkProcessed(ctx, ev.RegistrationID, p.cfg.Clock()); err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			p.log.InfoContext(ctx, "registration gone before processing", "registration_id", ev.RegistrationID)
			return nil
		}
		return fmt.Errorf("mark processed: %w", err)
	}

	p.log.InfoContext(ctx, "registration processed", "registration_id", ev.RegistrationID)
	return nil
}
