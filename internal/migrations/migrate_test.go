package migrations

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestUp_CreatesSchema(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Up(db); err != nil {
		t.Fatalf("Up returned error: %v", err)
	}

	for _, table := range []string{"state_blobs", "orcamentos_guardados"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing after migrations: %v", table, err)
		}
	}

	// Re-running against an up-to-date schema is a no-op.
	if err := Up(db); err != nil {
		t.Fatalf("second Up returned error: %v", err)
	}
}
