package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityRepository defines the storage interface for identity records
type IdentityRepository interface {
	// Create persists a new identity
	Create(ctx context.Context, id *Identity) error
	// GetByID retrieves an identity by id
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	// GetByEmail retrieves an identity by its primary email
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	// EmailTaken reports whether an email is the primary address of any identity
	// other than excludeID. Pass uuid.Nil to exclude nobody.
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	// SetPendingEmail sets or clears the unverified candidate email
	SetPendingEmail(ctx context.Context, id uuid.UUID, pendingEmail *string) error
	// CommitEmailChange promotes the pending email to the primary address,
	// clears the pending field and marks the email verified, guarded on a
	// pending email being present and on global uniqueness. Returns the
	// committed address.
	CommitEmailChange(ctx context.Context, id uuid.UUID) (string, error)
	// UpdatePasswordHash replaces the stored password credential
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error
	// ListLinkedAccounts returns the external logins linked to an identity
	ListLinkedAccounts(ctx context.Context, id uuid.UUID) ([]LinkedAccount, error)
	// AddLinkedAccount links an external login to an identity
	AddLinkedAccount(ctx context.Context, id uuid.UUID, account LinkedAccount) error
}

// PostgresIdentityRepository implements IdentityRepository using pgx
type PostgresIdentityRepository struct {
	db *pgxpool.Pool
}

// NewPostgresIdentityRepository creates a new Postgres-backed identity repository
func NewPostgresIdentityRepository(db *pgxpool.Pool) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{db: db}
}

// Create persists a new identity
func (r *PostgresIdentityRepository) Create(ctx context.Context, id *Identity) error {
	query := `
		INSERT INTO users (id, name, email, pending_email, email_verified, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		id.ID, id.Name, id.Email, id.PendingEmail, id.EmailVerified, id.PasswordHash,
	).Scan(&id.CreatedAt, &id.UpdatedAt)
}

// GetByID retrieves an identity by id
func (r *PostgresIdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	query := `
		SELECT id, name, email, pending_email, email_verified, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanIdentity(r.db.QueryRow(ctx, query, id))
}

// GetByEmail retrieves an identity by its primary email
func (r *PostgresIdentityRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	query := `
		SELECT id, name, email, pending_email, email_verified, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	return r.scanIdentity(r.db.QueryRow(ctx, query, email))
}

func (r *PostgresIdentityRepository) scanIdentity(row pgx.Row) (*Identity, error) {
	var ident Identity
	err := row.Scan(
		&ident.ID,
		&ident.Name,
		&ident.Email,
		&ident.PendingEmail,
		&ident.EmailVerified,
		&ident.PasswordHash,
		&ident.CreatedAt,
		&ident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return &ident, nil
}

// EmailTaken reports whether an email belongs to an identity other than excludeID
func (r *PostgresIdentityRepository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE email = $1 AND id <> $2
		)
	`

	var taken bool
	err := r.db.QueryRow(ctx, query, email, excludeID).Scan(&taken)
	if err != nil {
		return false, err
	}

	return taken, nil
}

// SetPendingEmail sets or clears the pending email in a single update
func (r *PostgresIdentityRepository) SetPendingEmail(ctx context.Context, id uuid.UUID, pendingEmail *string) error {
	query := `
		UPDATE users
		SET pending_email = $2,
		    updated_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, pendingEmail)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// CommitEmailChange promotes the pending email in one guarded update. The
// uniqueness re-check runs inside the same statement so no other identity can
// claim the address between check and commit.
func (r *PostgresIdentityRepository) CommitEmailChange(ctx context.Context, id uuid.UUID) (string, error) {
	query := `
		UPDATE users u
		SET email = u.pending_email,
		    pending_email = NULL,
		    email_verified = TRUE,
		    updated_at = NOW() AT TIME ZONE 'UTC'
		WHERE u.id = $1
		  AND u.pending_email IS NOT NULL
		  AND NOT EXISTS (
		    SELECT 1 FROM users o WHERE o.email = u.pending_email AND o.id <> u.id
		  )
		RETURNING u.email
	`

	var committed string
	err := r.db.QueryRow(ctx, query, id).Scan(&committed)
	if err == nil {
		return committed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	// The guarded update matched nothing; inspect state to report why.
	ident, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return "", getErr
	}
	if ident.PendingEmail == nil {
		return "", ErrNoPendingChange
	}
	return "", ErrEmailInUse
}

// UpdatePasswordHash replaces the stored password credential
func (r *PostgresIdentityRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    updated_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// ListLinkedAccounts returns the external logins linked to an identity
func (r *PostgresIdentityRepository) ListLinkedAccounts(ctx context.Context, id uuid.UUID) ([]LinkedAccount, error) {
	query := `
		SELECT provider_id, account_id
		FROM linked_accounts
		WHERE user_id = $1
		ORDER BY provider_id
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []LinkedAccount
	for rows.Next() {
		var acc LinkedAccount
		if err := rows.Scan(&acc.ProviderID, &acc.AccountID); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

// AddLinkedAccount links an external login to an identity
func (r *PostgresIdentityRepository) AddLinkedAccount(ctx context.Context, id uuid.UUID, account LinkedAccount) error {
	query := `
		INSERT INTO linked_accounts (user_id, provider_id, account_id)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Exec(ctx, query, id, account.ProviderID, account.AccountID)
	return err
}
