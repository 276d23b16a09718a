package order

import (
	"fmt"
	"sync/atomic"

	"github.com/kapetan-io/tackle/clock"
)

// --------------------------------------------------------------------------
// Order
// --------------------------------------------------------------------------

// Order is a single prepared-food order sitting somewhere between the kitchen
// and a courier.
//
// The descriptive attributes are immutable after construction. The only
// mutable pieces are the lifecycle state (atomic, see State) and the time the
// order spent on the overflow shelf, which is set once when the mover
// promotes the order back to its native shelf.
//
// Thread-safety: all methods are safe for concurrent use.
type Order struct {
	id            string
	name          string
	temperature   Temperature
	shelfLifeSecs int
	decayRate     float64
	createdAtMs   int64

	clk *clock.Provider

	state      atomic.Int32
	overflowMs atomic.Int64
}

// New creates an order in the Created state. The creation timestamp is taken
// from the supplied clock, which every later value computation consults as
// well - tests freeze it to make decay deterministic.
func New(id, name string, temperature Temperature, shelfLifeSecs int, decayRate float64, clk *clock.Provider) *Order {
	o := &Order{
		id:            id,
		name:          name,
		temperature:   temperature,
		shelfLifeSecs: shelfLifeSecs,
		decayRate:     decayRate,
		createdAtMs:   clk.Now().UnixMilli(),
		clk:           clk,
	}
	o.state.Store(int32(Created))
	return o
}

func (o *Order) ID() string               { return o.id }
func (o *Order) Name() string             { return o.name }
func (o *Order) Temperature() Temperature { return o.temperature }
func (o *Order) ShelfLifeSecs() int       { return o.shelfLifeSecs }
func (o *Order) DecayRate() float64       { return o.decayRate }
func (o *Order) CreatedAtMs() int64       { return o.createdAtMs }

// --------------------------------------------------------------------------
// Shelf value computations
// --------------------------------------------------------------------------

// CurrValueMs returns the remaining shelf value of the order in milliseconds
// under the given decay-rate factor. A value of zero or below means the order
// is waste. The factor is supplied by the shelf holding the order: overflow
// shelves pass a higher factor, so the same order loses value faster there.
func (o *Order) CurrValueMs(decayRateFactor float64) int64 {
	ageMs := o.clk.Now().UnixMilli() - o.createdAtMs
	value := float64(int64(o.shelfLifeSecs)*1000-ageMs) - o.decayRate*decayRateFactor*float64(ageMs)
	return int64(value)
}

// HasExpired reports whether the order's remaining value under the given
// decay-rate factor has reached zero. Given the same factor, once this
// returns true it stays true.
func (o *Order) HasExpired(decayRateFactor float64) bool {
	return o.CurrValueMs(decayRateFactor) <= 0
}

// NormalizedValue returns the remaining value as a fraction of the order's
// initial shelf life, in [<=0, 1].
func (o *Order) NormalizedValue(decayRateFactor float64) float64 {
	return float64(o.CurrValueMs(decayRateFactor)) / float64(int64(o.shelfLifeSecs)*1000)
}

// ExpiryTimestampMs returns the wall-clock millisecond timestamp at which the
// order runs out of value on a shelf with the given decay-rate factor. Time
// already burned on the overflow shelf is subtracted, so a promoted order
// never expires later than it would have in overflow.
func (o *Order) ExpiryTimestampMs(decayRateFactor float64) int64 {
	return o.createdAtMs + o.CurrValueMs(decayRateFactor) - o.TimeSpentOnOverflowMs()
}

// --------------------------------------------------------------------------
// Lifecycle state
// --------------------------------------------------------------------------

// State returns the current lifecycle state.
func (o *Order) State() State {
	return State(o.state.Load())
}

// SetState unconditionally stores the given state. Callers that race with
// other mutators must use CompareAndSwapState instead.
func (o *Order) SetState(s State) {
	o.state.Store(int32(s))
}

// CompareAndSwapState atomically replaces old with new and reports whether
// the swap happened. Use it to change the state of an order that other
// goroutines may be transitioning at the same time.
func (o *Order) CompareAndSwapState(old, new State) bool {
	return o.state.CompareAndSwap(int32(old), int32(new))
}

// Terminal reports whether the order reached a state that permits no further
// transition.
func (o *Order) Terminal() bool {
	return o.State().Terminal()
}

// OnShelf reports whether the order currently occupies a slot on any shelf.
func (o *Order) OnShelf() bool {
	return o.State().Stored()
}

// TimeSpentOnOverflowMs returns how long the order sat on the overflow shelf
// before being promoted, or zero if it never was.
func (o *Order) TimeSpentOnOverflowMs() int64 {
	return o.overflowMs.Load()
}

// SetTimeSpentOnOverflowMs records the overflow residence time. Set exactly
// once, after a successful promotion to the native shelf.
func (o *Order) SetTimeSpentOnOverflowMs(ms int64) {
	o.overflowMs.Store(ms)
}

// --------------------------------------------------------------------------
// Copying and equality
// --------------------------------------------------------------------------

// DeepCopy returns a detached snapshot of the order, including its state and
// overflow residence time at the moment of the copy. Mutating the copy has no
// effect on the original; listing APIs hand copies to callers.
func (o *Order) DeepCopy() *Order {
	c := &Order{
		id:            o.id,
		name:          o.name,
		temperature:   o.temperature,
		shelfLifeSecs: o.shelfLifeSecs,
		decayRate:     o.decayRate,
		createdAtMs:   o.createdAtMs,
		clk:           o.clk,
	}
	c.state.Store(o.state.Load())
	c.overflowMs.Store(o.overflowMs.Load())
	return c
}

// Equal reports whether two orders denote the same order. Identity is the
// tuple (id, name, temperature, shelfLife); in practice the id alone
// discriminates, but the container does not rely on that.
func (o *Order) Equal(other *Order) bool {
	if other == nil {
		return false
	}
	return o.id == other.id && o.name == other.name &&
		o.temperature == other.temperature && o.shelfLifeSecs == other.shelfLifeSecs
}

func (o *Order) String() string {
	return fmt.Sprintf("order{id=%s name=%q temp=%s life=%ds state=%s}",
		o.id, o.name, o.temperature, o.shelfLifeSecs, o.State())
}
