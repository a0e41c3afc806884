package kafka

import (
	"context"

	"github.com/geocoder89/registrationhub/internal/events"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Sender produces event messages and waits for the broker acknowledgement.
type Sender struct {
	client *kgo.Client
}

func NewSender(client *kgo.Client) *Sender {
	return &Sender{client: client}
}

func (s *Sender) Send(ctx context.Context, topic string, msg events.Message) error {
	return s.client.ProduceSync(ctx, toRecord(topic, msg)).FirstErr()
}

func (s *Sender) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func toRecord(topic string, msg events.Message) *kgo.Record {
	r := &kgo.Record{
		Topic: topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
	}

	for k, v := range msg.Headers {
		r.Headers = append(r.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return r
}

func fromRecord(r *kgo.Record) events.Message {
	msg := events.Message{
		Key:     string(r.Key),
		Payload: r.Value,
		Headers: make(map[string]string, len(r.Headers)),
	}

	for _, h := range r.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	msg.Type = events.Type(msg.Headers[events.HeaderType])
	return msg
}
