// Package queue provides the concurrent containers the shelf pod is built
// from.
//
// The package contains four pieces:
//
//   - MPSC: an unbounded lock-free multi-producer single-consumer queue.
//     Every mutation of the pod appends a record here; a single dispatcher
//     goroutine drains it and keeps the worker queues consistent without any
//     transactional coupling between them.
//   - OrderHeap: a binary min-heap over orders combined with an id index, so
//     the soonest-to-expire order is O(1) to find and any order is O(log n)
//     to remove by id. Not thread-safe by itself; callers synchronize.
//   - BlockingHeap: OrderHeap plus a mutex and condition variable, giving the
//     mover workers a blocking, priority-ordered take.
//   - DelayHeap: its own binary heap keyed by expiry timestamp (with an id
//     index, like OrderHeap) plus a timer-driven
//     single-consumer take that only releases an entry once its timestamp has
//     been reached. The expirer worker sits on this.
package queue
