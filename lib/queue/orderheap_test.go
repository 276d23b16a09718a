package queue

import (
	"testing"

	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/kapetan-io/tackle/clock"
)

var heapFactors = map[order.Temperature]float64{
	order.Hot: 1, order.Cold: 1, order.Frozen: 1, order.Overflow: 2,
}

// makeOrder creates a hot order with the given id and shelf life for heap
// tests; no decay so ordering follows the shelf life directly.
func makeOrder(id string, lifeSecs int) *order.Order {
	return order.New(id, "test-order", order.Hot, lifeSecs, 0, clock.NewProvider())
}

func heapLess() func(a, b *order.Order) bool {
	return order.NewExpiryComparator(heapFactors).Less
}

// TestOrderHeapPopsInExpiryOrder verifies the min-heap property.
func TestOrderHeapPopsInExpiryOrder(t *testing.T) {
	h := NewOrderHeap(heapLess())

	h.Push(makeOrder("c", 300))
	h.Push(makeOrder("a", 100))
	h.Push(makeOrder("b", 200))

	want := []string{"a", "b", "c"}
	for _, id := range want {
		o, ok := h.Pop()
		if !ok {
			t.Fatalf("expected order %s, heap empty", id)
		}
		if o.ID() != id {
			t.Errorf("expected %s, got %s", id, o.ID())
		}
	}
	if _, ok := h.Pop(); ok {
		t.Error("heap should be empty")
	}
}

// TestOrderHeapRejectsDuplicateIDs verifies the id index guards the heap.
func TestOrderHeapRejectsDuplicateIDs(t *testing.T) {
	h := NewOrderHeap(heapLess())

	if !h.Push(makeOrder("a", 100)) {
		t.Fatal("first push should succeed")
	}
	if h.Push(makeOrder("a", 200)) {
		t.Error("pushing a duplicate id should fail")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", h.Len())
	}
}

// TestOrderHeapRemoveByID verifies O(log n) removal from the middle.
func TestOrderHeapRemoveByID(t *testing.T) {
	h := NewOrderHeap(heapLess())
	h.Push(makeOrder("a", 100))
	h.Push(makeOrder("b", 200))
	h.Push(makeOrder("c", 300))

	if _, removed := h.RemoveByID("b"); !removed {
		t.Fatal("remove of present id should succeed")
	}
	if _, removed := h.RemoveByID("b"); removed {
		t.Error("second remove of same id should fail")
	}
	if h.Contains("b") {
		t.Error("removed id should not be contained")
	}

	// remaining order intact
	o, _ := h.Pop()
	if o.ID() != "a" {
		t.Errorf("expected a at the head, got %s", o.ID())
	}
	o, _ = h.Pop()
	if o.ID() != "c" {
		t.Errorf("expected c next, got %s", o.ID())
	}
}

// TestOrderHeapPeekAndSnapshot verifies the non-destructive views.
func TestOrderHeapPeekAndSnapshot(t *testing.T) {
	h := NewOrderHeap(heapLess())
	if _, ok := h.Peek(); ok {
		t.Error("peek on empty heap should fail")
	}

	h.Push(makeOrder("b", 200))
	h.Push(makeOrder("a", 100))

	o, ok := h.Peek()
	if !ok || o.ID() != "a" {
		t.Errorf("peek should return the head without removing, got %v", o)
	}
	if h.Len() != 2 {
		t.Errorf("peek must not remove, len=%d", h.Len())
	}

	snapshot := h.Snapshot()
	if len(snapshot) != 2 {
		t.Errorf("snapshot should contain 2 orders, got %d", len(snapshot))
	}
}
