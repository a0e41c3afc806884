//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/geocoder89/registrationhub/internal/domain/outbox"
	"github.com/geocoder89/registrationhub/internal/domain/registration"
	"github.com/geocoder89/registrationhub/internal/repo/postgres"
	"github.com/geocoder89/registrationhub/internal/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func newRegistration(email string) registration.Registration {
	return registration.New(registration.CreateRequest{
		FirstName:   "Ana",
		LastName:    "Lopez",
		Email:       email,
		Age:         intPtr(30),
		CountryCode: "ES",
	}, time.Now())
}

func create(t *testing.T, repo *postgres.RegistrationsRepo, reg registration.Registration) (registration.Registration, error) {
	t.Helper()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	saved, err := repo.CreateTx(ctx, tx, reg)
	if err != nil {
		return registration.Registration{}, err
	}
	require.NoError(t, tx.Commit(ctx))
	return saved, nil
}

func TestRegistrationsRepo_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	repo := postgres.NewRegistrationsRepo(pg.Pool, nil)
	ctx := context.Background()

	t.Run("create then read back", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		in := newRegistration("ana@x.com")
		saved, err := create(t, repo, in)
		require.NoError(t, err)
		assert.Positive(t, saved.ID)

		got, err := repo.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, in.Email, got.Email)
		assert.Equal(t, registration.StatusProcessing, got.Status)
		assert.True(t, got.CreatedAt.Equal(in.CreatedAt))
		assert.True(t, got.UpdatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate email", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		_, err := create(t, repo, newRegistration("dup@x.com"))
		require.NoError(t, err)

		_, err = create(t, repo, newRegistration("dup@x.com"))
		assert.ErrorIs(t, err, registration.ErrEmailTaken)
	})

	t.Run("list in id order", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
			_, err := create(t, repo, newRegistration(email))
			require.NoError(t, err)
		}

		regs, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, regs, 3)
		assert.Less(t, regs[0].ID, regs[1].ID)
		assert.Less(t, regs[1].ID, regs[2].ID)
	})

	t.Run("update and delete", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		saved, err := create(t, repo, newRegistration("upd@x.com"))
		require.NoError(t, err)
		other, err := create(t, repo, newRegistration("other@x.com"))
		require.NoError(t, err)

		saved.MarkProcessed(time.Now().Add(time.Second))
		updated, err := repo.Update(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, registration.StatusProcessed, updated.Status)

		other.Email = "upd@x.com"
		_, err = repo.Update(ctx, other)
		assert.ErrorIs(t, err, registration.ErrEmailTaken)

		require.NoError(t, repo.Delete(ctx, saved.ID))
		assert.ErrorIs(t, repo.Delete(ctx, saved.ID), registration.ErrNotFound)

		_, err = repo.GetByID(ctx, saved.ID)
		assert.ErrorIs(t, err, registration.ErrNotFound)

		_, err = repo.Update(ctx, saved)
		assert.ErrorIs(t, err, registration.ErrNotFound)
	})

	t.Run("mark processed keeps concurrent edits", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		saved, err := create(t, repo, newRegistration("mp@x.com"))
		require.NoError(t, err)

		// a PATCH lands while the consumer is still waiting
		edited := saved
		edited.FirstName = "Bea"
		edited.UpdatedAt = registration.Timestamp(time.Now())
		_, err = repo.Update(ctx, edited)
		require.NoError(t, err)

		at := time.Now().Add(time.Minute)
		got, err := repo.MarkProcessed(ctx, saved.ID, at)
		require.NoError(t, err)

		assert.Equal(t, registration.StatusProcessed, got.Status)
		assert.Equal(t, "Bea", got.FirstName)
		assert.True(t, got.UpdatedAt.Equal(registration.Timestamp(at)))

		require.NoError(t, repo.Delete(ctx, saved.ID))
		_, err = repo.MarkProcessed(ctx, saved.ID, at)
		assert.ErrorIs(t, err, registration.ErrNotFound)
	})
}

func TestOutboxRepo_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	regs := postgres.NewRegistrationsRepo(pg.Pool, nil)
	repo := postgres.NewOutboxRepo(pg.Pool, nil)
	ctx := context.Background()

	enqueue := func(t *testing.T, commit bool) outbox.Message {
		t.Helper()

		tx, err := regs.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback(ctx) }()

		m, err := repo.EnqueueTx(ctx, tx, outbox.CreateRequest{
			Topic:   "notifications",
			Key:     "1",
			Payload: json.RawMessage(`{"registrationId":1}`),
		})
		require.NoError(t, err)

		if commit {
			require.NoError(t, tx.Commit(ctx))
		}
		return m
	}

	t.Run("rolled back messages are invisible", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		enqueue(t, false)

		_, err := repo.ClaimNext(ctx, "w1")
		assert.ErrorIs(t, err, outbox.ErrEmpty)
	})

	t.Run("claim then mark sent", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		m := enqueue(t, true)

		claimed, err := repo.ClaimNext(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, m.ID, claimed.ID)
		assert.Equal(t, outbox.StatusProcessing, claimed.Status)
		assert.JSONEq(t, `{"registrationId":1}`, string(claimed.Payload))

		// claimed rows are not handed out twice
		_, err = repo.ClaimNext(ctx, "w2")
		assert.ErrorIs(t, err, outbox.ErrEmpty)

		require.NoError(t, repo.MarkSent(ctx, claimed.ID))

		_, err = repo.ClaimNext(ctx, "w1")
		assert.ErrorIs(t, err, outbox.ErrEmpty)
	})

	t.Run("reschedule defers the next claim", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		enqueue(t, true)

		claimed, err := repo.ClaimNext(ctx, "w1")
		require.NoError(t, err)

		require.NoError(t, repo.Reschedule(ctx, claimed.ID, time.Now().Add(time.Hour), "broker down"))

		_, err = repo.ClaimNext(ctx, "w1")
		assert.ErrorIs(t, err, outbox.ErrEmpty)

		require.NoError(t, repo.Reschedule(ctx, claimed.ID, time.Now().Add(-time.Second), "broker down"))

		again, err := repo.ClaimNext(ctx, "w1")
		require.NoError(t, err)
		assert.Equal(t, claimed.ID, again.ID)
		require.NotNil(t, again.LastError)
		assert.Equal(t, "broker down", *again.LastError)
	})

	t.Run("stale locks are requeued", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		enqueue(t, true)

		_, err := repo.ClaimNext(ctx, "crashed")
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		n, err := repo.RequeueStale(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.ClaimNext(ctx, "w1")
		assert.NoError(t, err)
	})
}
