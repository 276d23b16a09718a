// Package dispatch is the consumer side of the fulfillment service: a mock
// courier dispatcher. It observes the shelf pod's add events and, for every
// stored order, schedules a pickup after a random courier travel delay. The
// pickup polls whichever order is then soonest to expire - couriers are
// interchangeable, so the pod's priority order decides what leaves first.
package dispatch
