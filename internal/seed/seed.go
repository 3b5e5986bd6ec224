// Package seed initializes the persisted state documents on startup.
package seed

import (
	"fmt"

	"github.com/solid-projects/gestao/internal/blob"
	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/custos"
	"github.com/solid-projects/gestao/internal/obras"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way: the bundled catalog
// is installed when missing or stale, the work registry and custos
// documents are created empty when missing. The working budget is not
// touched here; it is created lazily against the effective catalog.
func Run(store *blob.Store) (Stats, error) {
	stats := Stats{}

	if err := ensureCatalogo(store, &stats); err != nil {
		return Stats{}, err
	}
	if err := ensureObras(store, &stats); err != nil {
		return Stats{}, err
	}
	if err := ensureCustos(store, &stats); err != nil {
		return Stats{}, err
	}

	return stats, nil
}

func ensureCatalogo(store *blob.Store, stats *Stats) error {
	var existing catalog.Catalog
	found, err := store.Load(blob.KeyCatalogo, &existing)
	if err != nil {
		return fmt.Errorf("load catalogo blob: %w", err)
	}
	if found && !existing.Stale() {
		return nil
	}

	bundled, err := catalog.Bundled()
	if err != nil {
		return fmt.Errorf("decode bundled catalogo: %w", err)
	}
	if err := store.Save(blob.KeyCatalogo, bundled); err != nil {
		return fmt.Errorf("save catalogo blob: %w", err)
	}
	if found {
		stats.Updates++
	} else {
		stats.Inserts++
	}
	return nil
}

func ensureObras(store *blob.Store, stats *Stats) error {
	var existing []obras.Obra
	found, err := store.Load(blob.KeyObras, &existing)
	if err != nil {
		return fmt.Errorf("load obras blob: %w", err)
	}
	if found {
		return nil
	}
	if err := store.Save(blob.KeyObras, []obras.Obra{}); err != nil {
		return fmt.Errorf("save obras blob: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureCustos(store *blob.Store, stats *Stats) error {
	var existing custos.State
	found, err := store.Load(blob.KeyCustos, &existing)
	if err != nil {
		return fmt.Errorf("load custos blob: %w", err)
	}
	if found {
		return nil
	}
	if err := store.Save(blob.KeyCustos, custos.NewState()); err != nil {
		return fmt.Errorf("save custos blob: %w", err)
	}
	stats.Inserts++
	return nil
}
