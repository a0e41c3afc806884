package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/outbox"
	"github.com/geocoder89/registrationhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `id, topic, msg_key, payload, status, attempts, run_at, locked_at, locked_by, last_error, created_at, updated_at, sent_at`

type OutboxRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewOutboxRepo(pool *pgxpool.Pool, prom *observability.Prom) *OutboxRepo {
	return &OutboxRepo{pool: pool, prom: prom}
}

// EnqueueTx records a message inside the caller's transaction so it commits
// or rolls back together with the change it describes.
func (r *OutboxRepo) EnqueueTx(ctx context.Context, tx pgx.Tx, req outbox.CreateRequest) (outbox.Message, error) {
	m := outbox.New(req)

	err := r.prom.ObserveDB("outbox.enqueue_tx", func() error {
		_, err := tx.Exec(ctx, `
		INSERT INTO outbox_messages (id, topic, msg_key, payload, status, attempts, run_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.Topic, m.Key, m.Payload, string(m.Status), m.Attempts, m.RunAt, m.CreatedAt, m.UpdatedAt)
		return err
	})

	if err != nil {
		return outbox.Message{}, err
	}
	return m, nil
}

// ClaimNext locks the oldest ready message for workerID. Concurrent relays
// skip each other's rows.
func (r *OutboxRepo) ClaimNext(ctx context.Context, workerID string) (outbox.Message, error) {
	var m outbox.Message

	err := r.prom.ObserveDB("outbox.claim_next", func() error {
		return scanOutbox(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM outbox_messages
			WHERE status = 'pending'
			  AND run_at <= NOW()
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE outbox_messages
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+outboxColumns, workerID), &m)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outbox.Message{}, outbox.ErrEmpty
		}
		return outbox.Message{}, err
	}

	return m, nil
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id string) error {
	return r.exec(ctx, "outbox.mark_sent", `
		UPDATE outbox_messages
		SET status = 'sent',
		    sent_at = NOW(),
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, "outbox.mark_failed", `
		UPDATE outbox_messages
		SET status = 'failed',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
}

// Reschedule puts a message back to pending after a failed publish.
func (r *OutboxRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.exec(ctx, "outbox.reschedule", `
		UPDATE outbox_messages
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)
}

// RequeueStale returns messages whose relay died mid-publish to the pending pool.
func (r *OutboxRepo) RequeueStale(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := lockTTL.Seconds()
	if secs <= 0 {
		secs = 30
	}

	var tag pgconn.CommandTag
	err := r.prom.ObserveDB("outbox.requeue_stale", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at < NOW() - make_interval(secs => $1)
	`, secs)
		return err
	})

	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *OutboxRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

func scanOutbox(row pgx.Row, m *outbox.Message) error {
	var status string

	err := row.Scan(
		&m.ID, &m.Topic, &m.Key, &m.Payload, &status, &m.Attempts,
		&m.RunAt, &m.LockedAt, &m.LockedBy, &m.LastError,
		&m.CreatedAt, &m.UpdatedAt, &m.SentAt,
	)
	if err != nil {
		return err
	}

	m.Status = outbox.Status(status)
	return nil
}
