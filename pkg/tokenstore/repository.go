package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepository defines the interface for verification token operations
type TokenRepository interface {
	// Create persists a new token for the given purpose-scoped identifier
	Create(ctx context.Context, identifier, value string, expiresAt time.Time) (*VerificationToken, error)
	// GetByValue retrieves a token by its secret value
	GetByValue(ctx context.Context, value string) (*VerificationToken, error)
	// ConsumeByID deletes a token and reports whether this caller removed it.
	// The delete is atomic: under concurrent submissions of the same token
	// exactly one caller observes true.
	ConsumeByID(ctx context.Context, id uuid.UUID) (bool, error)
	// DeleteByIdentifier deletes all tokens for an identifier. Idempotent.
	DeleteByIdentifier(ctx context.Context, identifier string) error
	// DeleteExpired removes tokens whose expiry has passed. Storage hygiene
	// only; expiry is enforced at verification time regardless.
	DeleteExpired(ctx context.Context) error
}

// PostgresTokenRepository implements TokenRepository using pgx
type PostgresTokenRepository struct {
	db *pgxpool.Pool
}

// NewPostgresTokenRepository creates a new Postgres-backed token repository
func NewPostgresTokenRepository(db *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

// Create persists a new verification token
func (r *PostgresTokenRepository) Create(ctx context.Context, identifier, value string, expiresAt time.Time) (*VerificationToken, error) {
	query := `
		INSERT INTO verification_tokens (id, identifier, value, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, identifier, value, created_at, expires_at
	`

	var vt VerificationToken
	err := r.db.QueryRow(ctx, query, uuid.New(), identifier, value, expiresAt).Scan(
		&vt.ID,
		&vt.Identifier,
		&vt.Value,
		&vt.CreatedAt,
		&vt.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	return &vt, nil
}

// GetByValue retrieves a token by its secret value
func (r *PostgresTokenRepository) GetByValue(ctx context.Context, value string) (*VerificationToken, error) {
	query := `
		SELECT id, identifier, value, created_at, expires_at
		FROM verification_tokens
		WHERE value = $1
	`

	var vt VerificationToken
	err := r.db.QueryRow(ctx, query, value).Scan(
		&vt.ID,
		&vt.Identifier,
		&vt.Value,
		&vt.CreatedAt,
		&vt.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &vt, nil
}

// ConsumeByID deletes a token by id. The RETURNING clause makes the delete a
// conditional read: only the caller whose DELETE removed the row sees it.
func (r *PostgresTokenRepository) ConsumeByID(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		DELETE FROM verification_tokens
		WHERE id = $1
		RETURNING id
	`

	var deleted uuid.UUID
	err := r.db.QueryRow(ctx, query, id).Scan(&deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// DeleteByIdentifier deletes all tokens for the given identifier
func (r *PostgresTokenRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	query := `
		DELETE FROM verification_tokens
		WHERE identifier = $1
	`

	_, err := r.db.Exec(ctx, query, identifier)
	return err
}

// DeleteExpired removes all expired tokens
func (r *PostgresTokenRepository) DeleteExpired(ctx context.Context) error {
	query := `
		DELETE FROM verification_tokens
		WHERE expires_at <= NOW() AT TIME ZONE 'UTC'
	`

	_, err := r.db.Exec(ctx, query)
	return err
}
