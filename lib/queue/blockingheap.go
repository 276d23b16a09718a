package queue

import (
	"sync"

	"github.com/ValentinKolb/shelfpod/lib/order"
)

// --------------------------------------------------------------------------
// BlockingHeap
// --------------------------------------------------------------------------

// BlockingHeap is an OrderHeap with blocking take semantics, used as the
// per-temperature watch queue the mover workers sit on.
//
// Producers (the update dispatcher) push overflow-resident orders in; the
// mover takes them in expiry order, blocking while the queue is empty.
// Entries may be stale by the time they are taken - the order may have been
// delivered or expired meanwhile - the taker re-checks and drops those.
//
// Thread-safety: all methods are safe for concurrent use. Take is intended
// for a single consumer but does not require one.
type BlockingHeap struct {
	mu     sync.Mutex
	notify *sync.Cond
	heap   *OrderHeap
	closed bool
}

// NewBlockingHeap creates an empty queue ordered by the given less function.
func NewBlockingHeap(less func(a, b *order.Order) bool) *BlockingHeap {
	b := &BlockingHeap{
		heap: NewOrderHeap(less),
	}
	b.notify = sync.NewCond(&b.mu)
	return b
}

// Push inserts the order and wakes a blocked taker. Returns false if the
// queue is closed or the order is already present.
func (b *BlockingHeap) Push(o *order.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if !b.heap.Push(o) {
		return false
	}
	b.notify.Signal()
	return true
}

// Take removes and returns the head order, blocking while the queue is
// empty. Returns (nil, false) once the queue is closed and drained.
func (b *BlockingHeap) Take() (*order.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if o, ok := b.heap.Pop(); ok {
			return o, true
		}
		if b.closed {
			return nil, false
		}
		b.notify.Wait()
	}
}

// Remove drops the order with the given id, if present.
func (b *BlockingHeap) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, removed := b.heap.RemoveByID(id)
	return removed
}

// Len returns the current number of queued orders.
func (b *BlockingHeap) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.heap.Len()
}

// Close wakes all blocked takers. Queued orders remain takeable until the
// queue is drained; further pushes are rejected.
func (b *BlockingHeap) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.notify.Broadcast()
}
