// Package kafka carries registration events over Kafka using franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type Config struct {
	Brokers  []string
	ClientID string
	// Topic and Group are only needed by consumers.
	Topic string
	Group string
	// DeliveryTimeout fails a produced record that is still unacknowledged
	// after this long. Zero keeps franz-go's unbounded default.
	DeliveryTimeout time.Duration
}

// NewProducerClient returns a client tuned for synchronous, fully acknowledged produces.
func NewProducerClient(cfg Config) (*kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID(cfg, "registrationhub-api")),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka producer client: %w", err)
	}
	return cl, nil
}

// EnsureTopic creates topic when it is missing. An existing topic is left untouched.
func EnsureTopic(ctx context.Context, cl *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(cl)

	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}

	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func clientID(cfg Config, fallback string) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return fallback
}
