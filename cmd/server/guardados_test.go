package main

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"
)

func newGuardadosTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`
		CREATE TABLE orcamentos_guardados (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			obra TEXT NOT NULL DEFAULT '',
			cliente TEXT NOT NULL DEFAULT '',
			data_orcamento TEXT NOT NULL DEFAULT '',
			versao TEXT NOT NULL DEFAULT '',
			totals_json TEXT NOT NULL DEFAULT '{}',
			doc_json TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedGuardado(t *testing.T, db *sql.DB, id, createdAt, obra, cliente, totalsJSON string) {
	t.Helper()
	if _, err := db.Exec(`
		INSERT INTO orcamentos_guardados (id, created_at, obra, cliente, totals_json, doc_json)
		VALUES (?, ?, ?, ?, ?, '{}')
	`, id, createdAt, obra, cliente, totalsJSON); err != nil {
		t.Fatalf("seed guardado: %v", err)
	}
}

func TestListGuardadosOrdersByDateDescAndReadsTotal(t *testing.T) {
	db := newGuardadosTestDB(t)
	srv := &server{db: db, log: zap.NewNop().Sugar()}

	seedGuardado(t, db, "a", "2026-01-01 10:00:00", "24.001 - Moradia", "Silva", `{"totalGeralVenda": 100.50}`)
	seedGuardado(t, db, "b", "2026-01-03 12:00:00", "24.002 - Armazem", "Costa", `{"totalGeralVenda": 300.00}`)
	seedGuardado(t, db, "c", "2026-01-02 11:00:00", "24.003 - Loja", "Pereira", `{"totalGeralVenda": 200.25}`)

	items, err := srv.listGuardados("")
	if err != nil {
		t.Fatalf("listGuardados returned error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != "b" || items[1].ID != "c" || items[2].ID != "a" {
		t.Fatalf("items are not sorted desc by created_at: %+v", items)
	}
	if items[0].Total != 300.00 || items[1].Total != 200.25 || items[2].Total != 100.50 {
		t.Fatalf("unexpected totals: %+v", items)
	}
}

func TestListGuardadosFilterByObraAndCliente(t *testing.T) {
	db := newGuardadosTestDB(t)
	srv := &server{db: db, log: zap.NewNop().Sugar()}

	seedGuardado(t, db, "a", "2026-01-01 10:00:00", "24.001 - Moradia Queluz", "Silva", `{}`)
	seedGuardado(t, db, "b", "2026-01-02 10:00:00", "24.002 - Armazem", "Construtora Queluz", `{}`)
	seedGuardado(t, db, "c", "2026-01-03 10:00:00", "24.003 - Loja", "Pereira", `{}`)

	byObra, err := srv.listGuardados("Moradia")
	if err != nil {
		t.Fatalf("listGuardados obra filter returned error: %v", err)
	}
	if len(byObra) != 1 || byObra[0].ID != "a" {
		t.Fatalf("expected 1 item filtered by obra, got %+v", byObra)
	}

	byAmbos, err := srv.listGuardados("queluz")
	if err != nil {
		t.Fatalf("listGuardados cliente filter returned error: %v", err)
	}
	if len(byAmbos) != 2 {
		t.Fatalf("expected 2 items filtered by obra/cliente, got %+v", byAmbos)
	}
}

func TestExtractTotalFromJSON(t *testing.T) {
	if got := extractTotalFromJSON(`{"totalGeralVenda": 70, "totalGeralSeco": 50}`); got != 70 {
		t.Fatalf("venda total = %v, want 70", got)
	}
	if got := extractTotalFromJSON(`{"totalGeralSeco": 50}`); got != 50 {
		t.Fatalf("seco fallback = %v, want 50", got)
	}
	if got := extractTotalFromJSON(`not json`); got != 0 {
		t.Fatalf("garbage = %v, want 0", got)
	}
}
