package queue

import (
	"container/heap"

	"github.com/ValentinKolb/shelfpod/lib/order"
)

// --------------------------------------------------------------------------
// OrderHeap
// --------------------------------------------------------------------------

// heapEntry wraps an order together with its position in the heap slice, so
// removal by id stays O(log n).
type heapEntry struct {
	ord   *order.Order
	index int
}

// inner carries the heap.Interface implementation so that OrderHeap itself
// can expose a typed API without the interface{} round trips.
type inner struct {
	entries []*heapEntry
	less    func(a, b *order.Order) bool
}

func (h *inner) Len() int { return len(h.entries) }

func (h *inner) Less(i, j int) bool {
	return h.less(h.entries[i].ord, h.entries[j].ord)
}

func (h *inner) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *inner) Push(x interface{}) {
	e := x.(*heapEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *inner) Pop() interface{} {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // release the slot for GC
	e.index = -1
	h.entries = old[:n-1]
	return e
}

// OrderHeap is a binary min-heap of orders combined with an id index.
//
// The heap half keeps the order with the smallest comparator value at the
// head (O(log n) push/pop); the map half makes any order reachable by id
// (O(1) lookup, O(log n) removal). The shared shelf queue needs both: pickup
// pops the head, while move and expire remove specific orders from the
// middle.
//
// Thread-safety: none. Callers wrap the heap in their own synchronization;
// see BlockingHeap and DelayHeap.
type OrderHeap struct {
	inner inner
	byID  map[string]*heapEntry
}

// NewOrderHeap creates an empty heap ordered by the given less function.
func NewOrderHeap(less func(a, b *order.Order) bool) *OrderHeap {
	return &OrderHeap{
		inner: inner{
			entries: make([]*heapEntry, 0, 16),
			less:    less,
		},
		byID: make(map[string]*heapEntry),
	}
}

// Len returns the number of orders in the heap.
func (q *OrderHeap) Len() int { return q.inner.Len() }

// Push inserts the order. Returns false if an order with the same id is
// already present.
func (q *OrderHeap) Push(o *order.Order) bool {
	if _, exists := q.byID[o.ID()]; exists {
		return false
	}
	e := &heapEntry{ord: o}
	heap.Push(&q.inner, e)
	q.byID[o.ID()] = e
	return true
}

// Pop removes and returns the head (smallest) order.
func (q *OrderHeap) Pop() (*order.Order, bool) {
	if q.inner.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.inner).(*heapEntry)
	delete(q.byID, e.ord.ID())
	return e.ord, true
}

// Peek returns the head order without removing it.
func (q *OrderHeap) Peek() (*order.Order, bool) {
	if q.inner.Len() == 0 {
		return nil, false
	}
	return q.inner.entries[0].ord, true
}

// RemoveByID removes the order with the given id from anywhere in the heap.
func (q *OrderHeap) RemoveByID(id string) (*order.Order, bool) {
	e, exists := q.byID[id]
	if !exists {
		return nil, false
	}
	heap.Remove(&q.inner, e.index)
	delete(q.byID, id)
	return e.ord, true
}

// Contains reports whether an order with the given id is present.
func (q *OrderHeap) Contains(id string) bool {
	_, exists := q.byID[id]
	return exists
}

// Snapshot returns the orders in heap order (not sorted). Callers that need
// a sorted view sort the copy themselves.
func (q *OrderHeap) Snapshot() []*order.Order {
	orders := make([]*order.Order, 0, q.inner.Len())
	for _, e := range q.inner.entries {
		orders = append(orders, e.ord)
	}
	return orders
}
