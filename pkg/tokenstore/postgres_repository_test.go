package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresTokenRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE verification_tokens (
			id UUID PRIMARY KEY,
			identifier TEXT NOT NULL,
			value TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'UTC'),
			expires_at TIMESTAMP NOT NULL
		);
		CREATE INDEX idx_verification_tokens_identifier ON verification_tokens (identifier);
	`)
	require.NoError(t, err)

	repo := NewPostgresTokenRepository(pool)
	identifier := "email-change-4a1f4f5e-0000-0000-0000-000000000001"

	t.Run("CreateAndGetByValue", func(t *testing.T) {
		vt, err := repo.Create(ctx, identifier, "pg_secret_1", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		found, err := repo.GetByValue(ctx, "pg_secret_1")
		require.NoError(t, err)
		assert.Equal(t, vt.ID, found.ID)
		assert.Equal(t, identifier, found.Identifier)
	})

	t.Run("GetByValueNotFound", func(t *testing.T) {
		_, err := repo.GetByValue(ctx, "missing")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("ConsumeByIDOnlyOnce", func(t *testing.T) {
		vt, err := repo.Create(ctx, identifier, "pg_secret_2", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		consumed, err := repo.ConsumeByID(ctx, vt.ID)
		require.NoError(t, err)
		assert.True(t, consumed)

		consumed, err = repo.ConsumeByID(ctx, vt.ID)
		require.NoError(t, err)
		assert.False(t, consumed)

		_, err = repo.GetByValue(ctx, "pg_secret_2")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("DeleteByIdentifier", func(t *testing.T) {
		_, err := repo.Create(ctx, identifier, "pg_secret_3", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)
		_, err = repo.Create(ctx, identifier, "pg_secret_4", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		err = repo.DeleteByIdentifier(ctx, identifier)
		require.NoError(t, err)

		_, err = repo.GetByValue(ctx, "pg_secret_3")
		assert.ErrorIs(t, err, ErrTokenNotFound)
		_, err = repo.GetByValue(ctx, "pg_secret_4")
		assert.ErrorIs(t, err, ErrTokenNotFound)

		// Wiping again is a no-op
		err = repo.DeleteByIdentifier(ctx, identifier)
		assert.NoError(t, err)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		_, err := repo.Create(ctx, identifier, "pg_secret_dead", time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
		_, err = repo.Create(ctx, identifier, "pg_secret_live", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		err = repo.DeleteExpired(ctx)
		require.NoError(t, err)

		_, err = repo.GetByValue(ctx, "pg_secret_dead")
		assert.ErrorIs(t, err, ErrTokenNotFound)
		_, err = repo.GetByValue(ctx, "pg_secret_live")
		assert.NoError(t, err)
	})
}
