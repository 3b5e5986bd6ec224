package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed catalogo.json
var bundled []byte

// Bundled parses the catalog document shipped with the binary.
func Bundled() (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(bundled, &c); err != nil {
		return nil, fmt.Errorf("parse bundled catalog: %w", err)
	}
	if c.Version != CurrentVersion {
		return nil, fmt.Errorf("bundled catalog version %d, want %d", c.Version, CurrentVersion)
	}
	return &c, nil
}
