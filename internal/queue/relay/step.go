package relay

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/outbox"
	"github.com/geocoder89/registrationhub/internal/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ProcessOne claims and publishes a single message. It reports false when
// nothing was ready. Publish failures are rescheduled, not returned.
func (r *Relay) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	m, err := r.store.ClaimNext(claimCtx, r.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, outbox.ErrEmpty) {
			return false, nil
		}
		return false, err
	}

	ctx, span := tracer.Start(ctx, "outbox.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("outbox.id", m.ID),
		attribute.String("messaging.destination", m.Topic),
		attribute.Int("outbox.attempts", m.Attempts),
	)

	ev, err := events.DecodeCreated(m.Payload)
	if err != nil {
		r.log.ErrorContext(ctx, "dropping unreadable outbox message", "outbox_id", m.ID, "err", err)
		r.prom.ObserveOutbox("dropped", 0)
		return true, r.store.MarkFailed(ctx, m.ID, err.Error())
	}

	pubCtx, pubCancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
	start := time.Now()
	err = r.pub.PublishCreated(pubCtx, events.Route{Topic: m.Topic, Key: m.Key}, ev)
	took := time.Since(start)
	pubCancel()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		runAt := time.Now().UTC().Add(r.cfg.Backoff(m.Attempts))
		r.log.WarnContext(ctx, "publish failed, rescheduling",
			"outbox_id", m.ID,
			"registration_id", ev.RegistrationID,
			"attempts", m.Attempts+1,
			"run_at", runAt,
			"err", err,
		)
		r.prom.ObserveOutbox("rescheduled", took)

		if rerr := r.store.Reschedule(ctx, m.ID, runAt, err.Error()); rerr != nil {
			return true, rerr
		}
		return true, nil
	}

	if err := r.store.MarkSent(ctx, m.ID); err != nil {
		// the broker already has it; a stale requeue will publish a duplicate
		return true, err
	}

	r.prom.ObserveOutbox("sent", took)
	r.log.DebugContext(ctx, "registration created event published", "outbox_id", m.ID, "registration_id", ev.RegistrationID)

	return true, nil
}
