package queue

import (
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Lock-free MPSC queue
// --------------------------------------------------------------------------

// mpscNode is one pending item. The next pointer needs no atomics: it is
// written before the node is published and only read by the consumer after
// it has taken the whole segment with an atomic swap.
type mpscNode[T any] struct {
	value *T
	next  *mpscNode[T]
}

// MPSC is an unbounded lock-free multi-producer single-consumer queue.
//
// Producers publish by pushing onto an intrusive LIFO list with a single
// CAS on its top pointer; there is no tail to maintain and therefore no
// helping protocol. The consumer detaches the entire list at once with an
// atomic swap, reverses the segment back into arrival order, and streams it
// into the channel returned by Recv. A push is one CAS regardless of queue
// length, and the consumer touches the shared pointer once per segment
// rather than once per item.
//
// Items pushed by one goroutine are delivered in push order (the per-segment
// reversal restores it, and segments are detached in order). Interleaving
// between producers follows whichever CAS lands first.
//
// The pod uses this as its update log: every add/move/remove/poll/expire
// appends a record, and the single update dispatcher drains it.
type MPSC[T any] struct {
	top    atomic.Pointer[mpscNode[T]]
	out    chan *T
	wake   chan struct{}
	closed atomic.Bool
}

// NewMPSC creates the queue and starts its consumer goroutine.
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{
		out:  make(chan *T),
		wake: make(chan struct{}, 1),
	}
	go q.consume()
	return q
}

// Push appends an item. Returns false if the item is nil or the queue is
// already closed.
//
// Thread-safety: safe for any number of concurrent callers.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}
	for {
		old := q.top.Load()
		n.next = old
		if q.top.CompareAndSwap(old, n) {
			break
		}
	}

	// Leave a wake token for a parked consumer. A full buffer already
	// means a rescan is due, so the drop is harmless.
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// consume detaches pending segments and feeds them to the output channel.
func (q *MPSC[T]) consume() {
	defer close(q.out)

	for {
		seg := q.top.Swap(nil)
		if seg == nil {
			if q.closed.Load() {
				// a producer may have slipped a push in between the swap
				// and the flag read; leave only once the list stays empty
				if q.top.Load() == nil {
					return
				}
				continue
			}
			<-q.wake
			continue
		}

		// the detached segment is newest-first; reverse it in place
		var fifo *mpscNode[T]
		for seg != nil {
			next := seg.next
			seg.next = fifo
			fifo = seg
			seg = next
		}

		for fifo != nil {
			q.out <- fifo.value
			fifo.value = nil
			fifo = fifo.next
		}
	}
}

// Recv returns the receive side of the queue. The channel is closed once the
// queue is closed and drained.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops further pushes. Items already queued are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// IsClosed reports whether Close has been called.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}
