package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/geocoder89/registrationhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const registrationColumns = `id, first_name, last_name, email, age, country_code, status, created_at, updated_at`

type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return repo.pool.BeginTx(ctx, pgx.TxOptions{})
}

// CreateTx inserts reg inside tx and returns it with the assigned id.
// A duplicate email surfaces as registration.ErrEmailTaken.
func (repo *RegistrationsRepo) CreateTx(ctx context.Context, tx pgx.Tx, reg registration.Registration) (registration.Registration, error) {
	err := repo.prom.ObserveDB("registrations.create_tx", func() error {
		return tx.QueryRow(ctx, `
		INSERT INTO registrations (first_name, last_name, email, age, country_code, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, reg.FirstName, reg.LastName, reg.Email, reg.Age, reg.CountryCode, string(reg.Status), reg.CreatedAt, reg.UpdatedAt).Scan(&reg.ID)
	})

	if err != nil {
		if isEmailViolation(err) {
			return registration.Registration{}, registration.ErrEmailTaken
		}
		return registration.Registration{}, err
	}

	return reg, nil
}

func (repo *RegistrationsRepo) GetByID(ctx context.Context, id int64) (registration.Registration, error) {
	var r registration.Registration

	err := repo.prom.ObserveDB("registrations.get_by_id", func() error {
		return scanRegistration(repo.pool.QueryRow(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id,
		), &r)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return r, nil
}

// List returns every registration ordered by id.
func (repo *RegistrationsRepo) List(ctx context.Context) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = repo.prom.ObserveDB("registrations.list", func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY id ASC`)
		return qerr
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	regs = make([]registration.Registration, 0)

	for rows.Next() {
		var r registration.Registration

		if err := scanRegistration(rows, &r); err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}

	if err := rows.Err(); err != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues("registrations.list", "rows_err").Inc()
		}
		return nil, err
	}

	return regs, nil
}

// Update writes every mutable column of reg. It never inserts: a row deleted
// in the meantime yields registration.ErrNotFound.
func (repo *RegistrationsRepo) Update(ctx context.Context, reg registration.Registration) (registration.Registration, error) {
	var out registration.Registration

	err := repo.prom.ObserveDB("registrations.update", func() error {
		return scanRegistration(repo.pool.QueryRow(ctx, `
		UPDATE registrations
		SET first_name = $2,
		    last_name = $3,
		    email = $4,
		    age = $5,
		    country_code = $6,
		    status = $7,
		    updated_at = $8
		WHERE id = $1
		RETURNING `+registrationColumns,
			reg.ID, reg.FirstName, reg.LastName, reg.Email, reg.Age, reg.CountryCode, string(reg.Status), reg.UpdatedAt,
		), &out)
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return registration.Registration{}, registration.ErrNotFound
		case isEmailViolation(err):
			return registration.Registration{}, registration.ErrEmailTaken
		}
		return registration.Registration{}, err
	}

	return out, nil
}

// MarkProcessed sets only status and updated_at, so a PATCH committed between
// the consumer's wait and this write is kept.
func (repo *RegistrationsRepo) MarkProcessed(ctx context.Context, id int64, at time.Time) (registration.Registration, error) {
	reg := registration.Registration{ID: id}
	reg.MarkProcessed(at)

	var out registration.Registration

	err := repo.prom.ObserveDB("registrations.mark_processed", func() error {
		return scanRegistration(repo.pool.QueryRow(ctx, `
		UPDATE registrations
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+registrationColumns,
			reg.ID, string(reg.Status), reg.UpdatedAt,
		), &out)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return out, nil
}

// Delete removes a single registration.
func (repo *RegistrationsRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := repo.prom.ObserveDB("registrations.delete", func() error {
		var err error
		tag, err = repo.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return registration.ErrNotFound
	}

	return nil
}

func (repo *RegistrationsRepo) Ping(ctx context.Context) error {
	return repo.pool.Ping(ctx)
}

func scanRegistration(row pgx.Row, r *registration.Registration) error {
	var status string

	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Email, &r.Age, &r.CountryCode, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return err
	}

	r.Status = registration.Status(status)
	if !r.Status.IsValid() {
		return fmt.Errorf("registration %d: unknown status %q", r.ID, status)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return nil
}
