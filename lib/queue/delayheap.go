package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/kapetan-io/tackle/clock"
)

// --------------------------------------------------------------------------
// DelayHeap
// --------------------------------------------------------------------------

// delayEntry is an order annotated with the wall-clock millisecond at which
// it becomes takeable. The timestamp is captured at enqueue time with the
// decay-rate factor of the shelf the order sat on then; a later shelf change
// re-enqueues the order with a fresh timestamp.
type delayEntry struct {
	ord        *order.Order
	expiryAtMs int64
	index      int
}

type delayInner struct {
	entries []*delayEntry
}

func (h *delayInner) Len() int { return len(h.entries) }

func (h *delayInner) Less(i, j int) bool {
	if h.entries[i].expiryAtMs != h.entries[j].expiryAtMs {
		return h.entries[i].expiryAtMs < h.entries[j].expiryAtMs
	}
	return h.entries[i].ord.ID() < h.entries[j].ord.ID()
}

func (h *delayInner) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *delayInner) Push(x interface{}) {
	e := x.(*delayEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *delayInner) Pop() interface{} {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

// DelayHeap holds orders until their expiry timestamp is reached.
//
// Producers push orders annotated with the timestamp at which they run out
// of value; the single consumer's Take blocks until the earliest timestamp
// passes and then releases that order. Pushing an order that expires sooner
// than the current head re-arms the consumer's timer, so a short-lived order
// never waits behind a long-lived one.
//
// The expirer worker is the consumer: whatever Take releases is expired
// unless it already reached a terminal state.
//
// Thread-safety: Push, Remove, Len and Close are safe for concurrent use.
// Take must be called from a single consumer goroutine.
type DelayHeap struct {
	mu   sync.Mutex
	heap delayInner
	byID map[string]*delayEntry

	clk    *clock.Provider
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewDelayHeap creates an empty delay heap driven by the given clock.
func NewDelayHeap(clk *clock.Provider) *DelayHeap {
	return &DelayHeap{
		byID: make(map[string]*delayEntry),
		clk:  clk,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push schedules the order to surface at expiryAtMs. An order already
// present is rescheduled to the new timestamp. Returns false once closed.
func (d *DelayHeap) Push(o *order.Order, expiryAtMs int64) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	if e, exists := d.byID[o.ID()]; exists {
		e.expiryAtMs = expiryAtMs
		heap.Fix(&d.heap, e.index)
	} else {
		e := &delayEntry{ord: o, expiryAtMs: expiryAtMs}
		heap.Push(&d.heap, e)
		d.byID[o.ID()] = e
	}
	d.mu.Unlock()
	d.signal()
	return true
}

// Remove drops the order with the given id, if present.
func (d *DelayHeap) Remove(id string) bool {
	d.mu.Lock()
	e, exists := d.byID[id]
	if exists {
		heap.Remove(&d.heap, e.index)
		delete(d.byID, id)
	}
	d.mu.Unlock()
	if exists {
		// the removed entry may have been the head the consumer is timing on
		d.signal()
	}
	return exists
}

// Len returns the number of scheduled orders.
func (d *DelayHeap) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heap.Len()
}

// Take blocks until the earliest scheduled order's timestamp has passed and
// returns that order. Returns (nil, false) once the heap is closed.
func (d *DelayHeap) Take() (*order.Order, bool) {
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return nil, false
		}

		var timer <-chan time.Time
		if d.heap.Len() > 0 {
			head := d.heap.entries[0]
			delayMs := head.expiryAtMs - d.clk.Now().UnixMilli()
			if delayMs <= 0 {
				e := heap.Pop(&d.heap).(*delayEntry)
				delete(d.byID, e.ord.ID())
				d.mu.Unlock()
				return e.ord, true
			}
			timer = d.clk.After(time.Duration(delayMs) * time.Millisecond)
		}
		d.mu.Unlock()

		if timer == nil {
			select {
			case <-d.wake:
			case <-d.done:
			}
		} else {
			select {
			case <-d.wake:
			case <-timer:
			case <-d.done:
			}
		}
	}
}

// Close wakes the consumer and makes all further Takes return false.
func (d *DelayHeap) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.done)
}

// signal nudges a blocked consumer without blocking the producer.
func (d *DelayHeap) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
