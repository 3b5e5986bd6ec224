// Package blob persists the application state documents as named JSON
// blobs in SQLite.
package blob

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Well-known blob keys. The _v1 suffix versions the payload layout.
const (
	KeyCatalogo  = "orc_catalogo_v1"
	KeyOrcamento = "orc_orcamento_v1"
	KeyObras     = "orc_obras_v1"
	KeyCustos    = "orc_custos_v1"
)

// Store reads and writes named JSON blobs.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load unmarshals the blob under key into v. It reports whether the key
// existed; a missing key is not an error.
func (s *Store) Load(key string, v any) (bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM state_blobs WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load blob %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false, fmt.Errorf("decode blob %q: %w", key, err)
	}
	return true, nil
}

// Save marshals v and upserts it under key.
func (s *Store) Save(key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode blob %q: %w", key, err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO state_blobs (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, key, string(payload), time.Now().UTC().Format("2006-01-02 15:04:05")); err != nil {
		return fmt.Errorf("save blob %q: %w", key, err)
	}
	return nil
}

// Delete removes the blob under key. Missing keys are a no-op.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM state_blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}
