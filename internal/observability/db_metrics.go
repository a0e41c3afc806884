package observability

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB times fn as the logical operation op. A nil Prom just runs fn.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	// a missing row is an answer, not a failure
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

// classifyDBErr keeps the error label set small: Postgres SQLSTATE classes,
// duplicate emails, and the context outcomes.
func classifyDBErr(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			return "connection"
		}
		return "unknown"
	}

	switch {
	case pgErr.Code == "23505" && pgErr.ConstraintName == "registrations_email_key":
		return "email_taken"
	case pgErr.Code == "23505":
		return "unique_violation"
	case pgErr.Code == "23514":
		return "check_violation"
	case pgErr.Code == "40001", pgErr.Code == "40P01":
		return "serialization_failure"
	case pgErr.Code == "57014":
		return "query_canceled"
	case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
		return "connection"
	default:
		return "pg_" + pgErr.Code
	}
}
