package kitchen

import (
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"
)

// --------------------------------------------------------------------------
// Orders input file
// --------------------------------------------------------------------------

// OrderInput is one entry of the orders JSON file:
//
//	[{"name": "Banana Split", "temp": "frozen", "shelfLife": 20, "decayRate": 0.63}, ...]
type OrderInput struct {
	Name      string  `json:"name"`
	Temp      string  `json:"temp"`
	ShelfLife int     `json:"shelfLife"`
	DecayRate float64 `json:"decayRate"`
}

// ReadOrdersFile parses the orders JSON file at the given path.
func ReadOrdersFile(path string) ([]OrderInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading orders file: %w", err)
	}

	var inputs []OrderInput
	if err := sonnet.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parsing orders file %s: %w", path, err)
	}
	return inputs, nil
}
