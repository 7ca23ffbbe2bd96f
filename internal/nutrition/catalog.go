package nutrition

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

// GenericEntryID names the catalog row used when no dish matches well
// enough to report something specific.
const GenericEntryID = "unknown_food_generic"

//go:embed catalog.json
var embeddedCatalog []byte

// Entry is one catalog row: a dish identity with per-100g nutrient values.
// The catalog is loaded once at startup and never mutated, so concurrent
// reads need no locking.
type Entry struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Aliases     []string           `json:"aliases"`
	Per100g     map[string]float64 `json:"per_100g"`
	Ingredients []string           `json:"ingredients"`
	Allergens   []string           `json:"allergens"`
}

type catalogFile struct {
	Entries []Entry `json:"entries"`
}

// LoadCatalog reads the nutrition catalog from path, or the embedded
// default catalog when path is empty.
func LoadCatalog(path string) ([]Entry, error) {
	data := embeddedCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read nutrition catalog: %w", err)
		}
		data = b
	}

	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse nutrition catalog: %w", err)
	}
	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("nutrition catalog is empty")
	}
	return f.Entries, nil
}
