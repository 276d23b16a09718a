package shelf

import (
	"fmt"

	"github.com/ValentinKolb/shelfpod/lib/order"
)

// --------------------------------------------------------------------------
// Shelf
// --------------------------------------------------------------------------

// Shelf describes one temperature-controlled holding shelf: its identity, how
// many orders it can hold, and how fast orders decay on it. Shelves are plain
// immutable values; the pod holds exactly one per temperature.
type Shelf struct {
	ID              string
	Capacity        int
	Temperature     order.Temperature
	DecayRateFactor float64
}

// Equal reports whether two descriptors denote the same shelf.
func (s Shelf) Equal(other Shelf) bool {
	return s.ID == other.ID && s.Capacity == other.Capacity && s.Temperature == other.Temperature
}

func (s Shelf) String() string {
	return fmt.Sprintf("shelf{id=%s temp=%s capacity=%d decayRateFactor=%g}",
		s.ID, s.Temperature, s.Capacity, s.DecayRateFactor)
}

// --------------------------------------------------------------------------
// Shelf set helpers
// --------------------------------------------------------------------------

// shelfByTemp indexes the shelf list by temperature.
func shelfByTemp(shelves []Shelf) map[order.Temperature]Shelf {
	byTemp := make(map[order.Temperature]Shelf, len(shelves))
	for _, s := range shelves {
		byTemp[s.Temperature] = s
	}
	return byTemp
}

// DecayRateFactors extracts the temperature -> decay-rate-factor mapping the
// expiry comparator is constructed with.
func DecayRateFactors(shelves []Shelf) map[order.Temperature]float64 {
	factors := make(map[order.Temperature]float64, len(shelves))
	for _, s := range shelves {
		factors[s.Temperature] = s.DecayRateFactor
	}
	return factors
}

// validateShelves checks that the shelf list covers every temperature exactly
// once with positive capacities.
func validateShelves(shelves []Shelf) error {
	seen := make(map[order.Temperature]bool, len(shelves))
	for _, s := range shelves {
		if s.Capacity <= 0 {
			return fmt.Errorf("shelf %s has non-positive capacity %d", s.ID, s.Capacity)
		}
		if seen[s.Temperature] {
			return fmt.Errorf("duplicate shelf for temperature %s", s.Temperature)
		}
		seen[s.Temperature] = true
	}
	for _, temp := range order.Temperatures() {
		if !seen[temp] {
			return fmt.Errorf("missing shelf for temperature %s", temp)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// AddResult
// --------------------------------------------------------------------------

// AddResult reports the outcome of an add attempt. "Shelf full" and "came
// expired" are business outcomes encoded here, never errors: the kitchen
// keeps producing regardless.
type AddResult struct {
	// Added is true if the order now occupies a shelf slot.
	Added bool
	// State is the order's lifecycle state at the end of the attempt. It is
	// copied out of the order because the order may move on afterwards.
	State order.State
	// Shelf is the shelf that stored the order on success, or the last shelf
	// that was tried on failure.
	Shelf Shelf
}

func (r AddResult) String() string {
	return fmt.Sprintf("addResult{added=%t state=%s shelf=%s}", r.Added, r.State, r.Shelf.ID)
}
