package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/registrationhub/internal/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("registrationhub/worker")

// Handle adapts a broker message to OnCreated. Messages that can never be
// processed are logged and acknowledged; every other failure is returned so
// the broker redelivers.
func (p *Processor) Handle(ctx context.Context, msg events.Message) error {
	ctx = events.ExtractTrace(ctx, msg)
	ctx, span := tracer.Start(ctx, "registration.created process", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	p.prom.ConsumerStarted()
	start := time.Now()

	// a missing type header is read as a created event
	if msg.Type != "" && !msg.Type.IsValid() {
		err := fmt.Errorf("%w: %q", events.ErrInvalidEventType, msg.Type)
		p.log.WarnContext(ctx, "skipping message", "key", msg.Key, "err", err)
		p.prom.ConsumerFinished("skipped", time.Since(start))
		return nil
	}

	ev, err := events.DecodeCreated(msg.Payload)
	if err != nil {
		p.log.ErrorContext(ctx, "skipping unreadable message", "key", msg.Key, "err", err)
		p.prom.ConsumerFinished("skipped", time.Since(start))
		return nil
	}
	span.SetAttributes(attribute.Int64("registration.id", ev.RegistrationID))

	err = p.OnCreated(ctx, ev)
	took := time.Since(start)

	switch {
	case err == nil:
		p.prom.ConsumerFinished("processed", took)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// shutdown; left unacknowledged for redelivery
		p.prom.ConsumerFinished("interrupted", took)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.log.ErrorContext(ctx, "processing registration failed", "registration_id", ev.RegistrationID, "err", err)
		p.prom.ConsumerFinished("failed", took)
	}

	return err
}
