package shelf

import (
	"github.com/ValentinKolb/shelfpod/lib/order"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IShelfPod is the contract between the fulfillment core and its
// collaborators: the kitchen adds orders, the dispatcher polls them, and
// test or ops tooling lists them.
//
// All methods are safe for concurrent use. None of them block the caller;
// the blocking paths of the pod run exclusively on its own background
// workers.
type IShelfPod interface {
	// AddOrder places the order on its native shelf if there is space, on
	// the overflow shelf otherwise. The order must be in the Created state.
	// A full pod rejects by expiring the order (ExpiredOnNoSpace), an
	// already-worthless order is marked CameExpired; both are reported in
	// the AddResult, not as errors.
	AddOrder(o *order.Order) AddResult

	// PollOrder removes and returns the soonest-to-expire still-valid order,
	// or nil if the pod is empty. Orders found to have expired on the way
	// out are retired and skipped.
	PollOrder() *order.Order

	// ListOrders returns a detached, expiry-ordered snapshot of the orders
	// currently stored on the shelves. Mutating the returned orders has no
	// effect on the pod.
	ListOrders() []*order.Order

	// GetShelves returns the pod's shelf descriptors.
	GetShelves() []Shelf

	// AddObserver registers an observer for add events. Returns false if the
	// observer was already registered.
	AddObserver(obs IShelfPodObserver) bool

	// RemoveObserver unregisters a previously registered observer.
	RemoveObserver(obs IShelfPodObserver) bool
}

// --------------------------------------------------------------------------
// Observer
// --------------------------------------------------------------------------

// IShelfPodObserver receives pod events. Currently only the add event is
// published; it is what the dispatcher keys courier scheduling on.
//
// Callbacks run synchronously on the goroutine that performed the add, so
// implementations must not block - heavy work belongs on the observer's own
// executor. A panicking observer is logged and does not disturb the add path
// or the remaining observers.
type IShelfPodObserver interface {
	// PostAddOrder is called after every AddOrder attempt with the same
	// result the caller received.
	PostAddOrder(o *order.Order, result AddResult)
}
