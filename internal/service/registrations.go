// Package service holds the registration use cases. Handlers and the
// notification worker talk to the store only through it or through the
// narrow interfaces declared next to them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/outbox"
	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/geocoder89/registrationhub/internal/events"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("registrationhub/service")

type RegistrationStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, reg registration.Registration) (registration.Registration, error)
	GetByID(ctx context.Context, id int64) (registration.Registration, error)
	List(ctx context.Context) ([]registration.Registration, error)
	Update(ctx context.Context, reg registration.Registration) (registration.Registration, error)
	Delete(ctx context.Context, id int64) error
}

type OutboxWriter interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, req outbox.CreateRequest) (outbox.Message, error)
}

// Waker is told that new outbox messages were committed.
type Waker interface {
	Wake()
}

type Registrations struct {
	store  RegistrationStore
	outbox OutboxWriter
	waker  Waker
	topic  string
	log    *slog.Logger
	now    func() time.Time
}

type Option func(*Registrations)

func WithWaker(w Waker) Option {
	return func(s *Registrations) { s.waker = w }
}

func WithTopic(topic string) Option {
	return func(s *Registrations) { s.topic = topic }
}

func WithClock(now func() time.Time) Option {
	return func(s *Registrations) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Registrations) { s.log = log }
}

func NewRegistrations(store RegistrationStore, ob OutboxWriter, opts ...Option) *Registrations {
	s := &Registrations{
		store:  store,
		outbox: ob,
		topic:  events.DefaultTopic,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new registration and records its created event in the same
// transaction. Nothing is recorded when the insert fails.
func (s *Registrations) Create(ctx context.Context, req registration.CreateRequest) (reg registration.Registration, err error) {
	ctx, span := tracer.Start(ctx, "registrations.create")
	defer func() { endSpan(span, err) }()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return registration.Registration{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	saved, err := s.store.CreateTx(ctx, tx, registration.New(req, s.now()))
	if err != nil {
		return registration.Registration{}, err
	}

	msg, err := events.EncodeCreated(saved.CreatedEvent())
	if err != nil {
		return registration.Registration{}, err
	}

	_, err = s.outbox.EnqueueTx(ctx, tx, outbox.CreateRequest{
		Topic:   s.topic,
		Key:     msg.Key,
		Payload: msg.Payload,
	})
	if err != nil {
		return registration.Registration{}, fmt.Errorf("enqueue created event: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return registration.Registration{}, fmt.Errorf("commit: %w", err)
	}

	span.SetAttributes(attribute.Int64("registration.id", saved.ID))
	s.log.InfoContext(ctx, "registration created", "registration_id", saved.ID)

	if s.waker != nil {
		s.waker.Wake()
	}

	return saved, nil
}

// GetByID reports found=false for an unknown id.
func (s *Registrations) GetByID(ctx context.Context, id int64) (registration.Registration, bool, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			return registration.Registration{}, false, nil
		}
		return registration.Registration{}, false, err
	}
	return reg, true, nil
}

func (s *Registrations) List(ctx context.Context) ([]registration.Registration, error) {
	regs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []registration.Registration{}
	}
	return regs, nil
}

// Update applies the fields present in req. UpdatedAt moves forward even when
// nothing else changed.
func (s *Registrations) Update(ctx context.Context, id int64, req registration.UpdateRequest) (reg registration.Registration, found bool, err error) {
	ctx, span := tracer.Start(ctx, "registrations.update", trace.WithAttributes(attribute.Int64("registration.id", id)))
	defer func() { endSpan(span, err) }()

	current, found, err := s.GetByID(ctx, id)
	if err != nil || !found {
		return registration.Registration{}, found, err
	}

	current.Apply(req, s.now())

	updated, err := s.store.Update(ctx, current)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			return registration.Registration{}, false, nil
		}
		return registration.Registration{}, true, err
	}

	return updated, true, nil
}

// Delete reports whether a registration was removed.
func (s *Registrations) Delete(ctx context.Context, id int64) (bool, error) {
	err := s.store.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.log.InfoContext(ctx, "registration deleted", "registration_id", id)
	return true, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, registration.ErrEmailTaken) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
