package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileIdentityRepository implements IdentityRepository using file-based storage
type FileIdentityRepository struct {
	dataDir    string
	identities map[uuid.UUID]*Identity
	accounts   map[uuid.UUID][]LinkedAccount
	mutex      sync.RWMutex
}

// identityData represents the structure of data stored in the JSON file
type identityData struct {
	Identities []*Identity                    `json:"identities"`
	Accounts   map[uuid.UUID][]LinkedAccount `json:"accounts"`
}

// NewFileIdentityRepository creates a new file-based identity repository
func NewFileIdentityRepository(dataDir string) (*FileIdentityRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileIdentityRepository{
		dataDir:    dataDir,
		identities: make(map[uuid.UUID]*Identity),
		accounts:   make(map[uuid.UUID][]LinkedAccount),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Create persists a new identity
func (r *FileIdentityRepository) Create(ctx context.Context, id *Identity) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.identities[id.ID]; exists {
		return fmt.Errorf("identity already exists: %s", id.ID)
	}

	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now

	idCopy := *id
	r.identities[id.ID] = &idCopy

	if err := r.save(); err != nil {
		delete(r.identities, id.ID)
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

// GetByID retrieves an identity by id
func (r *FileIdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ident, exists := r.identities[id]
	if !exists {
		return nil, ErrIdentityNotFound
	}

	identCopy := *ident
	return &identCopy, nil
}

// GetByEmail retrieves an identity by its primary email
func (r *FileIdentityRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, ident := range r.identities {
		if ident.Email == email {
			identCopy := *ident
			return &identCopy, nil
		}
	}

	return nil, ErrIdentityNotFound
}

// EmailTaken reports whether an email belongs to an identity other than excludeID
func (r *FileIdentityRepository) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.emailTakenLocked(email, excludeID), nil
}

func (r *FileIdentityRepository) emailTakenLocked(email string, excludeID uuid.UUID) bool {
	for _, ident := range r.identities {
		if ident.Email == email && ident.ID != excludeID {
			return true
		}
	}
	return false
}

// SetPendingEmail sets or clears the pending email
func (r *FileIdentityRepository) SetPendingEmail(ctx context.Context, id uuid.UUID, pendingEmail *string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ident, exists := r.identities[id]
	if !exists {
		return ErrIdentityNotFound
	}

	prev := *ident
	ident.PendingEmail = pendingEmail
	ident.UpdatedAt = time.Now().UTC()

	if err := r.save(); err != nil {
		*ident = prev
		return err
	}

	return nil
}

// CommitEmailChange promotes the pending email under the write lock, so the
// uniqueness re-check and the commit form one atomic step.
func (r *FileIdentityRepository) CommitEmailChange(ctx context.Context, id uuid.UUID) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ident, exists := r.identities[id]
	if !exists {
		return "", ErrIdentityNotFound
	}
	if ident.PendingEmail == nil {
		return "", ErrNoPendingChange
	}
	if r.emailTakenLocked(*ident.PendingEmail, id) {
		return "", ErrEmailInUse
	}

	prev := *ident
	ident.Email = *ident.PendingEmail
	ident.PendingEmail = nil
	ident.EmailVerified = true
	ident.UpdatedAt = time.Now().UTC()

	if err := r.save(); err != nil {
		*ident = prev
		return "", err
	}

	return ident.Email, nil
}

// UpdatePasswordHash replaces the stored password credential
func (r *FileIdentityRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ident, exists := r.identities[id]
	if !exists {
		return ErrIdentityNotFound
	}

	prev := *ident
	ident.PasswordHash = hash
	ident.UpdatedAt = time.Now().UTC()

	if err := r.save(); err != nil {
		*ident = prev
		return err
	}

	return nil
}

// ListLinkedAccounts returns the external logins linked to an identity
func (r *FileIdentityRepository) ListLinkedAccounts(ctx context.Context, id uuid.UUID) ([]LinkedAccount, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	accounts := make([]LinkedAccount, len(r.accounts[id]))
	copy(accounts, r.accounts[id])

	return accounts, nil
}

// AddLinkedAccount links an external login to an identity
func (r *FileIdentityRepository) AddLinkedAccount(ctx context.Context, id uuid.UUID, account LinkedAccount) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.identities[id]; !exists {
		return ErrIdentityNotFound
	}

	prev := r.accounts[id]
	r.accounts[id] = append(append([]LinkedAccount(nil), prev...), account)

	if err := r.save(); err != nil {
		r.accounts[id] = prev
		return err
	}

	return nil
}

// load reads identity data from file
func (r *FileIdentityRepository) load() error {
	filePath := filepath.Join(r.dataDir, "identities.json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var idData identityData
	if err := json.Unmarshal(data, &idData); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.identities = make(map[uuid.UUID]*Identity)
	for _, ident := range idData.Identities {
		r.identities[ident.ID] = ident
	}

	r.accounts = idData.Accounts
	if r.accounts == nil {
		r.accounts = make(map[uuid.UUID][]LinkedAccount)
	}

	return nil
}

// save writes identity data to file atomically
func (r *FileIdentityRepository) save() error {
	identities := make([]*Identity, 0, len(r.identities))
	for _, ident := range r.identities {
		identities = append(identities, ident)
	}

	jsonData, err := json.MarshalIndent(identityData{
		Identities: identities,
		Accounts:   r.accounts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, "identities.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, "identities.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
