// Package kitchen is the producer side of the fulfillment service. It reads
// an orders file, mints order ids, and submits the orders to the shelf pod
// at a Poisson-distributed rate, the way a real kitchen hands dishes to the
// pass in bursts rather than on a metronome.
package kitchen
