package redisclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/registrationhub/internal/events"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	fieldKey     = "key"
	fieldPayload = "payload"
	headerPrefix = "h:"

	defaultClaimInterval = 30 * time.Second
)

// Send appends msg to the stream named topic.
func (c *Client) Send(ctx context.Context, topic string, msg events.Message) error {
	return c.redisdb.XAdd(ctx, c.xaddArgs(topic, msg)).Err()
}

func (c *Client) xaddArgs(topic string, msg events.Message) *redis.XAddArgs {
	values := map[string]any{
		fieldKey:     msg.Key,
		fieldPayload: string(msg.Payload),
	}
	for k, v := range msg.Headers {
		values[headerPrefix+k] = v
	}

	args := &redis.XAddArgs{Stream: topic, Values: values}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}
	return args
}

type Handler func(ctx context.Context, msg events.Message) error

type StreamConfig struct {
	Stream      string
	Group       string
	Consumer    string
	Concurrency int
	Block       time.Duration

	// ClaimMinIdle is how long an entry must sit unacknowledged before any
	// consumer of the group may take it over. It has to exceed the longest
	// time a handler legitimately holds a message. Zero disables claiming.
	ClaimMinIdle  time.Duration
	ClaimInterval time.Duration
}

// StreamSubscriber reads a stream through a consumer group. A message is
// acknowledged only after its handler succeeds. Failures stay in the pending
// list: this consumer replays its own on start, and entries idle for longer
// than ClaimMinIdle are claimed from any consumer, including ones that are gone.
type StreamSubscriber struct {
	client *Client
	cfg    StreamConfig
	log    *slog.Logger
}

func NewStreamSubscriber(client *Client, cfg StreamConfig, log *slog.Logger) *StreamSubscriber {
	if cfg.Stream == "" {
		cfg.Stream = events.DefaultTopic
	}
	if cfg.Group == "" {
		cfg.Group = events.DefaultGroup
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = defaultClaimInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &StreamSubscriber{client: client, cfg: cfg, log: log}
}

// EnsureGroup creates the consumer group (and the stream) if needed.
func (s *StreamSubscriber) EnsureGroup(ctx context.Context) error {
	err := s.client.redisdb.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", s.cfg.Group, s.cfg.Stream, err)
	}
	return nil
}

func (s *StreamSubscriber) Consume(ctx context.Context, handle Handler) error {
	if err := s.EnsureGroup(ctx); err != nil {
		return err
	}

	// an id replays this consumer's unacknowledged messages after it, ">" asks for new ones
	cursor := "0"
	var lastClaim time.Time

	for {
		if ctx.Err() != nil {
			return nil
		}

		if s.cfg.ClaimMinIdle > 0 && time.Since(lastClaim) >= s.cfg.ClaimInterval {
			s.claimIdle(ctx, handle)
			lastClaim = time.Now()
		}

		streams, err := s.client.redisdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.cfg.Group,
			Consumer: s.cfg.Consumer,
			Streams:  []string{s.cfg.Stream, cursor},
			Count:    int64(s.cfg.Concurrency),
			Block:    s.cfg.Block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			s.log.ErrorContext(ctx, "xreadgroup failed", "stream", s.cfg.Stream, "err", err)
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		var batch []redis.XMessage
		for _, st := range streams {
			batch = append(batch, st.Messages...)
		}

		replaying := cursor != ">"

		if replaying && len(batch) == 0 {
			cursor = ">"
			continue
		}

		s.handleBatch(ctx, batch, handle)

		if replaying {
			// walk the pending list once; failures wait for the next start
			cursor = batch[len(batch)-1].ID
		}
	}
}

// claimIdle takes over entries that have been pending longer than ClaimMinIdle
// and handles them as if they had just been delivered to this consumer.
func (s *StreamSubscriber) claimIdle(ctx context.Context, handle Handler) {
	start := "0-0"

	for ctx.Err() == nil {
		msgs, next, err := s.client.redisdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.cfg.Stream,
			Group:    s.cfg.Group,
			Consumer: s.cfg.Consumer,
			MinIdle:  s.cfg.ClaimMinIdle,
			Start:    start,
			Count:    int64(s.cfg.Concurrency),
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				s.log.ErrorContext(ctx, "xautoclaim failed", "stream", s.cfg.Stream, "err", err)
			}
			return
		}

		if len(msgs) > 0 {
			s.log.InfoContext(ctx, "claimed idle messages", "stream", s.cfg.Stream, "count", len(msgs))
			s.handleBatch(ctx, msgs, handle)
		}

		if next == "0-0" || next == "" {
			return
		}
		start = next
	}
}

func (s *StreamSubscriber) handleBatch(ctx context.Context, batch []redis.XMessage, handle Handler) {
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	for _, xm := range batch {
		g.Go(func() error {
			if err := handle(ctx, fromXMessage(xm)); err != nil {
				s.log.ErrorContext(ctx, "message handling failed", "stream", s.cfg.Stream, "id", xm.ID, "err", err)
				return nil
			}

			if err := s.client.redisdb.XAck(context.WithoutCancel(ctx), s.cfg.Stream, s.cfg.Group, xm.ID).Err(); err != nil {
				s.log.ErrorContext(ctx, "xack failed", "stream", s.cfg.Stream, "id", xm.ID, "err", err)
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (s *StreamSubscriber) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func fromXMessage(xm redis.XMessage) events.Message {
	msg := events.Message{Headers: make(map[string]string)}

	for k, v := range xm.Values {
		s, _ := v.(string)

		switch {
		case k == fieldKey:
			msg.Key = s
		case k == fieldPayload:
			msg.Payload = []byte(s)
		case strings.HasPrefix(k, headerPrefix):
			msg.Headers[strings.TrimPrefix(k, headerPrefix)] = s
		}
	}

	msg.Type = events.Type(msg.Headers[events.HeaderType])
	return msg
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
