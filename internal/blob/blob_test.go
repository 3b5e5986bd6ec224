package blob

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`
		CREATE TABLE state_blobs (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return NewStore(db)
}

type payload struct {
	Nome  string  `json:"nome"`
	Total float64 `json:"total"`
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(KeyObras, payload{Nome: "Moradia", Total: 1250.5}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var got payload
	found, err := s.Load(KeyObras, &got)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("blob not found after save")
	}
	if got.Nome != "Moradia" || got.Total != 1250.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestStore_MissingKeyIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	var got payload
	found, err := s.Load(KeyCustos, &got)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("found a blob that was never saved")
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(KeyOrcamento, payload{Nome: "v1"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.Save(KeyOrcamento, payload{Nome: "v2"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var got payload
	if _, err := s.Load(KeyOrcamento, &got); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Nome != "v2" {
		t.Fatalf("nome = %q, want v2", got.Nome)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(KeyCatalogo, payload{Nome: "cat"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Delete(KeyCatalogo); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var got payload
	found, err := s.Load(KeyCatalogo, &got)
	if err != nil || found {
		t.Fatalf("after delete: found=%v err=%v", found, err)
	}
}
