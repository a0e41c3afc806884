package events

import (
	"context"
	"fmt"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const HeaderType = "event-type"

// Sender hands a message to a broker topic. The Kafka and Redis clients implement it.
type Sender interface {
	Send(ctx context.Context, topic string, msg Message) error
}

// Route says where a stored message goes. Empty fields fall back to the
// publisher's topic and the key derived from the event.
type Route struct {
	Topic string
	Key   string
}

// Publisher sends registration facts to a default topic unless a Route overrides it.
type Publisher struct {
	sender Sender
	topic  string
}

func NewPublisher(sender Sender, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{sender: sender, topic: topic}
}

// PublishCreated serializes ev and sends it once. Retrying is the caller's business.
func (p *Publisher) PublishCreated(ctx context.Context, route Route, ev registration.CreatedEvent) error {
	msg, err := EncodeCreated(ev)
	if err != nil {
		return err
	}
	if route.Key != "" {
		msg.Key = route.Key
	}

	topic := p.topic
	if route.Topic != "" {
		topic = route.Topic
	}

	InjectTrace(ctx, &msg)

	if err := p.sender.Send(ctx, topic, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", msg.Type, topic, err)
	}
	return nil
}

// InjectTrace copies the active trace context and the event type into msg.Headers.
func InjectTrace(ctx context.Context, msg *Message) {
	if msg.Headers == nil {
		msg.Headers = make(map[string]string)
	}
	msg.Headers[HeaderType] = string(msg.Type)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Headers))
}

// ExtractTrace returns ctx carrying the trace context found in msg.Headers.
func ExtractTrace(ctx context.Context, msg Message) context.Context {
	if len(msg.Headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
}
