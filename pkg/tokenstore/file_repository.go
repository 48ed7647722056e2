package tokenstore

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

// FileTokenRepository implements TokenRepository using file-based storage
type FileTokenRepository struct {
	dataDir string
	tokens  map[uuid.UUID]*VerificationToken
	mutex   sync.RWMutex
}

// tokenData represents the structure of data stored in the JSON file
type tokenData struct {
	Tokens []*VerificationToken `json:"tokens"`
}

// NewFileTokenRepository creates a new file-based token repository
func NewFileTokenRepository(dataDir string) (*FileTokenRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileTokenRepository{
		dataDir: dataDir,
		tokens:  make(map[uuid.UUID]*VerificationToken),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Create persists a new verification token
func (r *FileTokenRepository) Create(ctx context.Context, identifier, value string, expiresAt time.Time) (*VerificationToken, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vt := &VerificationToken{
		ID:         uuid.New(),
		Identifier: identifier,
		Value:      value,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}

	r.tokens[vt.ID] = vt

	if err := r.save(); err != nil {
		delete(r.tokens, vt.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	return vt, nil
}

// GetByValue retrieves a token by its secret value
func (r *FileTokenRepository) GetByValue(ctx context.Context, value string) (*VerificationToken, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, vt := range r.tokens {
		if vt.Value == value {
			vtCopy := *vt
			return &vtCopy, nil
		}
	}

	return nil, ErrTokenNotFound
}

// ConsumeByID deletes a token by id while holding the write lock, so only one
// concurrent caller observes true for a given token.
func (r *FileTokenRepository) ConsumeByID(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vt, exists := r.tokens[id]
	if !exists {
		return false, nil
	}

	delete(r.tokens, id)

	if err := r.save(); err != nil {
		// Keep memory and disk in step: the token is only consumed once
		// the delete is durable.
		r.tokens[id] = vt
		return false, fmt.Errorf("failed to save: %w", err)
	}

	return true, nil
}

// DeleteByIdentifier deletes all tokens for the given identifier
func (r *FileTokenRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := make(map[uuid.UUID]*VerificationToken)
	for id, vt := range r.tokens {
		if vt.Identifier == identifier {
			removed[id] = vt
			delete(r.tokens, id)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	if err := r.save(); err != nil {
		for id, vt := range removed {
			r.tokens[id] = vt
		}
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

// DeleteExpired removes all expired tokens
func (r *FileTokenRepository) DeleteExpired(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	removed := make(map[uuid.UUID]*VerificationToken)
	for id, vt := range r.tokens {
		if vt.Expired(now) {
			removed[id] = vt
			delete(r.tokens, id)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	if err := r.save(); err != nil {
		for id, vt := range removed {
			r.tokens[id] = vt
		}
		return fmt.Errorf("failed to save: %w", err)
	}

	return nil
}

// load reads token data from file
func (r *FileTokenRepository) load() error {
	filePath := filepath.Join(r.dataDir, "verification_tokens.json")

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

	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.tokens = make(map[uuid.UUID]*VerificationToken)
	for _, token := range td.Tokens {
		r.tokens[token.ID] = token
	}

	return nil
}

// save writes token data to file atomically
func (r *FileTokenRepository) save() error {
	tokens := make([]*VerificationToken, 0, len(r.tokens))
	for _, token := range r.tokens {
		tokens = append(tokens, token)
	}

	jsonData, err := json.MarshalIndent(tokenData{Tokens: tokens}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, "verification_tokens.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, "verification_tokens.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
