// Package shelf implements the shelf pod: the concurrent bounded priority
// container that fulfillment runs on.
//
// A pod owns one shelf per temperature (hot, cold, frozen, overflow). All
// shelved orders live in a single shared priority queue ordered by expiry
// timestamp, so the soonest-to-expire order across the whole pod is always
// at the head - no scheduling layer above the pod is needed to decide which
// shelf to drain. Capacity is enforced per shelf with a fair counting
// semaphore: holding a permit is the sole right to insert into the shared
// queue on behalf of that shelf, and every removal gives the permit back.
//
// Around that core, StartBackgroundActivities launches:
//
//   - one mover worker per regular temperature, promoting overflow-resident
//     orders back to their native shelf as soon as a slot frees up,
//   - one expirer worker retiring orders the moment their value reaches zero,
//   - one update dispatcher, a single consumer that serializes all
//     post-mutation bookkeeping of the worker queues.
//
// The fast paths (add, poll) never take more than the semaphore plus the
// shared queue's own lock; pod-wide locking does not exist.
package shelf
