// Package auth manages the API keys guarding the admin HTTP surface.
// Keys are generated from crypto/rand and stored bcrypt-hashed in a
// table maintained through the database manager.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tablekit/tablekit/internal/dbmanager"
)

const (
	// KeysTable is where hashed API keys are stored.
	KeysTable = "tablekit_api_keys"
	// APIKeyLength is the length of generated API keys in bytes (hex
	// encoded on output).
	APIKeyLength = 32
)

// APIKeyService manages API key issuance and verification.
type APIKeyService struct {
	mgr *dbmanager.Manager
}

// NewAPIKeyService ensures the key table exists and returns the service.
func NewAPIKeyService(ctx context.Context, mgr *dbmanager.Manager) (*APIKeyService, error) {
	err := mgr.CreateTable(ctx, KeysTable, []dbmanager.Column{
		{Name: "id", Type: dbmanager.Integer, Options: dbmanager.ColumnOptions{PrimaryKey: true, AutoIncrement: true}},
		{Name: "name", Type: dbmanager.Text, Options: dbmanager.ColumnOptions{NotNull: true, Unique: true}},
		{Name: "key_hash", Type: dbmanager.Text, Options: dbmanager.ColumnOptions{NotNull: true}},
		{Name: "created_at", Type: dbmanager.Timestamp, Options: dbmanager.ColumnOptions{NotNull: true}},
	})
	if err != nil {
		return nil, err
	}
	return &APIKeyService{mgr: mgr}, nil
}

// GenerateKey creates a new cryptographically secure API key under the
// given name, replacing any previous key with that name. The plain key
// is returned exactly once; only its bcrypt hash is stored.
func (s *APIKeyService) GenerateKey(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("api key name is required")
	}

	raw := make([]byte, APIKeyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	key := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}

	err = s.mgr.Upsert(ctx, KeysTable, "name", dbmanager.ConflictUpdate, dbmanager.Record{
		"name":       name,
		"key_hash":   string(hash),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Verify reports whether the presented key matches any stored key.
func (s *APIKeyService) Verify(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	rows, err := s.mgr.Select(ctx, KeysTable, dbmanager.Query{Columns: []string{"key_hash"}})
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		hash, _ := row["key_hash"].(string)
		if hash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return true, nil
		}
	}
	return false, nil
}

// Active reports whether any API keys exist; with none issued, the admin
// surface runs open.
func (s *APIKeyService) Active(ctx context.Context) (bool, error) {
	rec, err := s.mgr.SelectOne(ctx, KeysTable, dbmanager.Query{Columns: []string{"id"}})
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}
