package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/geocoder89/registrationhub/internal/events"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

// Handler processes one delivered message. A non-nil error leaves it uncommitted.
type Handler func(ctx context.Context, msg events.Message) error

type partitionKey struct {
	topic     string
	partition int32
}

// Subscriber consumes a topic as part of a consumer group. Each fetched batch is
// handled concurrently and committed once its handlers return.
type Subscriber struct {
	client      *kgo.Client
	concurrency int
	log         *slog.Logger

	mu sync.Mutex
	// stuck holds, per partition, the offset of the first record that failed in
	// this assignment. Nothing at or past it is committed until the partition
	// moves away, so a restart or rebalance redelivers it.
	stuck map[partitionKey]int64
}

func NewSubscriber(cfg Config, concurrency int, log *slog.Logger) (*Subscriber, error) {
	if cfg.Topic == "" {
		cfg.Topic = events.DefaultTopic
	}
	if cfg.Group == "" {
		cfg.Group = events.DefaultGroup
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Subscriber{
		concurrency: concurrency,
		log:         log,
		stuck:       make(map[partitionKey]int64),
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID(cfg, "registrationhub-worker")),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsRevoked(s.forget),
		kgo.OnPartitionsLost(s.forget),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer client: %w", err)
	}

	s.client = cl
	return s, nil
}

func (s *Subscriber) Consume(ctx context.Context, handle Handler) error {
	for {
		fetches := s.client.PollFetches(ctx)

		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				s.log.ErrorContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "err", err)
			}
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}

		failed := s.handleBatch(ctx, records, handle)

		if ctx.Err() != nil {
			// handlers interrupted by shutdown are redelivered
			return nil
		}

		toCommit := s.committable(records, failed)
		if len(toCommit) == 0 {
			continue
		}

		if err := s.client.CommitRecords(ctx, toCommit...); err != nil {
			s.log.ErrorContext(ctx, "kafka commit failed", "err", err)
		}
	}
}

func (s *Subscriber) handleBatch(ctx context.Context, records []*kgo.Record, handle Handler) map[*kgo.Record]bool {
	var (
		mu     sync.Mutex
		failed = make(map[*kgo.Record]bool)
	)

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, r := range records {
		g.Go(func() error {
			if err := handle(ctx, fromRecord(r)); err != nil {
				s.log.ErrorContext(ctx, "message handling failed",
					"topic", r.Topic, "partition", r.Partition, "offset", r.Offset, "err", err)

				mu.Lock()
				failed[r] = true
				mu.Unlock()
			}
			// errors are tracked per record, the group itself never fails
			return nil
		})
	}

	_ = g.Wait()
	return failed
}

// committable returns, per partition, the last record of the successful run
// that precedes any failure. Records arrive in offset order per partition.
func (s *Subscriber) committable(records []*kgo.Record, failed map[*kgo.Record]bool) []*kgo.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := make(map[partitionKey]*kgo.Record)
	var order []partitionKey

	for _, r := range records {
		key := partitionKey{topic: r.Topic, partition: r.Partition}

		if stuckAt, ok := s.stuck[key]; ok && r.Offset >= stuckAt {
			continue
		}

		if failed[r] {
			s.stuck[key] = r.Offset
			continue
		}

		if _, seen := last[key]; !seen {
			order = append(order, key)
		}
		last[key] = r
	}

	out := make([]*kgo.Record, 0, len(order))
	for _, key := range order {
		out = append(out, last[key])
	}
	return out
}

func (s *Subscriber) forget(_ context.Context, _ *kgo.Client, lost map[string][]int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic, partitions := range lost {
		for _, p := range partitions {
			delete(s.stuck, partitionKey{topic: topic, partition: p})
		}
	}
}

func (s *Subscriber) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Subscriber) Close() {
	s.client.Close()
}
