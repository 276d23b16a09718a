package order

// --------------------------------------------------------------------------
// Expiry Comparator
// --------------------------------------------------------------------------

// ExpiryComparator orders two orders by their expiry timestamps, soonest
// first, with lexicographic id as the tie breaker so the ordering is total
// and stable.
//
// An order's expiry timestamp depends on the decay-rate factor of the shelf
// it currently sits on: an order stored in overflow is evaluated with the
// overflow factor, everything else with its native shelf's factor. The
// comparator therefore carries the factor of every shelf, captured by value
// at construction from the pod's immutable shelf set, rather than reaching
// back into the pod at compare time.
type ExpiryComparator struct {
	decayRateFactors map[Temperature]float64
}

// NewExpiryComparator creates a comparator over the given temperature ->
// decay-rate-factor mapping. The map is copied.
func NewExpiryComparator(decayRateFactors map[Temperature]float64) *ExpiryComparator {
	factors := make(map[Temperature]float64, len(decayRateFactors))
	for temp, factor := range decayRateFactors {
		factors[temp] = factor
	}
	return &ExpiryComparator{decayRateFactors: factors}
}

// Compare returns a negative value if a expires before b, a positive value if
// b expires before a, and falls back to id ordering on a tie.
func (c *ExpiryComparator) Compare(a, b *Order) int {
	ea := a.ExpiryTimestampMs(c.factorFor(a))
	eb := b.ExpiryTimestampMs(c.factorFor(b))
	switch {
	case ea < eb:
		return -1
	case ea > eb:
		return 1
	case a.ID() < b.ID():
		return -1
	case a.ID() > b.ID():
		return 1
	default:
		return 0
	}
}

// Less adapts Compare to the form heap implementations consume.
func (c *ExpiryComparator) Less(a, b *Order) bool {
	return c.Compare(a, b) < 0
}

// FactorFor returns the decay-rate factor of the shelf currently holding the
// order: the overflow factor while the order is stored in overflow, the
// native shelf's factor otherwise.
func (c *ExpiryComparator) FactorFor(o *Order) float64 {
	return c.factorFor(o)
}

func (c *ExpiryComparator) factorFor(o *Order) float64 {
	if o.State() == StoredInOverflow {
		return c.decayRateFactors[Overflow]
	}
	return c.decayRateFactors[o.Temperature()]
}
