// Package order contains the order entity of the fulfillment service and its
// supporting types.
//
// An Order combines immutable descriptive attributes (id, name, temperature,
// shelf life, decay rate) with a small amount of mutable state: an atomic
// lifecycle state cell and a counter recording how long the order sat on the
// overflow shelf. All value computations (remaining shelf value, expiry
// timestamp) are pure functions of wall time and a decay-rate factor supplied
// by the shelf that currently holds the order - the order itself never knows
// which shelf it is on.
//
// The lifecycle state is the linchpin of the concurrency design: the mover's
// promotion out of overflow is gated by a compare-and-swap, and the pickup
// and expiry paths set a terminal state only after taking the order out of
// the pod's shared queue, which exactly one caller can do. Together this
// allows the mover, expirer and pickup paths to race on the same order
// without double-delivering or double-expiring it. See State for the allowed
// transitions.
package order
