package shelf

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/ValentinKolb/shelfpod/lib/queue"
	"github.com/VictoriaMetrics/metrics"
	"github.com/kapetan-io/tackle/clock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

var Logger = logger.GetLogger("shelf")

// --------------------------------------------------------------------------
// Update log records
// --------------------------------------------------------------------------

// operation tags a record in the pod's update log.
type operation uint8

const (
	opAdd operation = iota
	opMove
	opRemove
	opPoll
	opExpire
)

func (op operation) String() string {
	switch op {
	case opAdd:
		return "add"
	case opMove:
		return "move"
	case opRemove:
		return "remove"
	case opPoll:
		return "poll"
	case opExpire:
		return "expire"
	default:
		return "operation(?)"
	}
}

// update is one entry of the update log. The shelf temperature is captured at
// the moment of the operation, because the order's state - and with it the
// shelf it would be attributed to - may have moved on by the time the
// dispatcher processes the record.
type update struct {
	op    operation
	ord   *order.Order
	shelf order.Temperature
}

// --------------------------------------------------------------------------
// ShelfPod
// --------------------------------------------------------------------------

// PodOptions configures optional pod behavior.
type PodOptions struct {
	// Clock supplies wall time to the pod and every order value computation.
	// Defaults to the system clock; tests freeze it.
	Clock *clock.Provider
}

// ShelfPod implements IShelfPod. See the package documentation for the
// design; the short version:
//
//   - one shared priority queue (expiry order) for all shelves,
//   - one fair counting semaphore per shelf as admission control,
//   - every transition out of a stored state owned by whoever removed the
//     order from the shared queue (promotion additionally CAS-gated),
//   - an MPSC update log serializing worker-queue bookkeeping into a single
//     dispatcher goroutine.
//
// Construction does not start any goroutines besides the update log's
// consumer; call StartBackgroundActivities to launch the movers, the expirer
// and the update dispatcher.
type ShelfPod struct {
	shelves []Shelf
	byTemp  map[order.Temperature]Shelf
	factors map[order.Temperature]float64
	cmp     *order.ExpiryComparator
	clk     *clock.Provider

	// the shared bounded priority queue: heap + per-shelf permits. The
	// mutex guards the heap only; it is the single lock on the fast paths.
	mu     sync.Mutex
	orders *queue.OrderHeap
	spaces map[order.Temperature]*semaphore.Weighted

	updates   *queue.MPSC[update]
	watch     map[order.Temperature]*queue.BlockingHeap
	expirable *queue.DelayHeap

	observers *xsync.MapOf[IShelfPodObserver, struct{}]

	bgMu    sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewShelfPod creates a pod over the given shelf set. The set must contain
// exactly one shelf per temperature, overflow included, each with positive
// capacity.
func NewShelfPod(shelves []Shelf, opts *PodOptions) (*ShelfPod, error) {
	if err := validateShelves(shelves); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &PodOptions{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewProvider()
	}

	factors := DecayRateFactors(shelves)
	cmp := order.NewExpiryComparator(factors)

	spaces := make(map[order.Temperature]*semaphore.Weighted, len(shelves))
	for _, s := range shelves {
		// Weighted semaphores queue their waiters FIFO and TryAcquire never
		// barges past a queued waiter, which is the fairness the admission
		// control relies on.
		spaces[s.Temperature] = semaphore.NewWeighted(int64(s.Capacity))
	}

	watch := make(map[order.Temperature]*queue.BlockingHeap, 3)
	for _, temp := range order.RegularTemperatures() {
		watch[temp] = queue.NewBlockingHeap(cmp.Less)
	}

	shelvesCopy := make([]Shelf, len(shelves))
	copy(shelvesCopy, shelves)

	return &ShelfPod{
		shelves:   shelvesCopy,
		byTemp:    shelfByTemp(shelvesCopy),
		factors:   factors,
		cmp:       cmp,
		clk:       clk,
		orders:    queue.NewOrderHeap(cmp.Less),
		spaces:    spaces,
		updates:   queue.NewMPSC[update](),
		watch:     watch,
		expirable: queue.NewDelayHeap(clk),
		observers: xsync.NewMapOf[IShelfPodObserver, struct{}](),
	}, nil
}

// GetShelves returns the pod's shelf descriptors.
func (p *ShelfPod) GetShelves() []Shelf {
	shelves := make([]Shelf, len(p.shelves))
	copy(shelves, p.shelves)
	return shelves
}

// shelfTempWhileStored derives the shelf currently charged for the order
// from its state. Calling this for an order that is not stored is a
// programming error: the shelf attribution would be meaningless, so it
// fails fast.
func shelfTempWhileStored(o *order.Order) order.Temperature {
	switch o.State() {
	case order.StoredInRegular:
		return o.Temperature()
	case order.StoredInOverflow:
		return order.Overflow
	}
	panic(fmt.Sprintf("order %s is not stored on any shelf (state=%s)", o.ID(), o.State()))
}

// storedState returns the stored-state value for the given shelf.
func storedState(shelfTemp order.Temperature) order.State {
	if shelfTemp == order.Overflow {
		return order.StoredInOverflow
	}
	return order.StoredInRegular
}

// expiredState returns the expired-state value for the given shelf. Keeping
// the shelf in the terminal state (ExpiredInRegular vs ExpiredInOverflow)
// makes waste attributable per shelf afterwards.
func expiredState(shelfTemp order.Temperature) order.State {
	if shelfTemp == order.Overflow {
		return order.ExpiredInOverflow
	}
	return order.ExpiredInRegular
}

// --------------------------------------------------------------------------
// Core operations
// --------------------------------------------------------------------------

// store is the shared implementation behind AddOrder and moveOrder. With
// prevState Created it acts as a non-blocking add (to the native shelf or,
// with toOverflow, to the overflow shelf); with prevState StoredInOverflow
// it acts as the mover's blocking promotion to the native shelf.
func (p *ShelfPod) store(o *order.Order, prevState order.State, toOverflow bool) AddResult {
	shelfTemp := o.Temperature()
	if toOverflow {
		shelfTemp = order.Overflow
	}
	space := p.spaces[shelfTemp]

	added := false
	if prevState == order.Created && o.HasExpired(p.factors[shelfTemp]) {
		o.SetState(order.CameExpired)
	} else {
		acquired := false
		if prevState == order.StoredInOverflow {
			// Mover path: wait for a native slot indefinitely. The wait ends
			// early when the pod shuts down.
			if err := space.Acquire(p.ctx, 1); err == nil {
				acquired = true
			}
		} else {
			acquired = space.TryAcquire(1)
		}

		if acquired {
			removed := true
			if prevState == order.StoredInOverflow {
				removed = p.RemoveOrder(o)
			}
			if removed && o.CompareAndSwapState(prevState, storedState(shelfTemp)) {
				if prevState == order.StoredInOverflow {
					// Time burned in overflow keeps counting against the
					// order on its native shelf; recording it before the
					// re-insert makes the expiry math see it.
					o.SetTimeSpentOnOverflowMs(p.clk.Now().UnixMilli() - o.CreatedAtMs())
				}
				p.mu.Lock()
				p.orders.Push(o)
				p.mu.Unlock()
				added = true
			} else {
				// Lost the race: the order was polled or expired between the
				// removal and the CAS. The freshly acquired permit goes back.
				space.Release(1)
			}
		} else if toOverflow {
			o.SetState(order.ExpiredOnNoSpace)
		}
	}
	return AddResult{Added: added, State: o.State(), Shelf: p.byTemp[shelfTemp]}
}

// AddOrder implements IShelfPod. The attempt order is native shelf first,
// overflow second; an order that is already worthless is marked CameExpired
// without consuming any capacity.
func (p *ShelfPod) AddOrder(o *order.Order) AddResult {
	Logger.Debugf("adding orderId=%s", o.ID())

	result := p.store(o, order.Created, false)
	if !result.Added && result.State != order.CameExpired {
		result = p.store(o, order.Created, true)
	}

	if result.Added {
		metrics.GetOrCreateCounter(fmt.Sprintf(`shelfpod_orders_added_total{shelf=%q}`, result.Shelf.Temperature)).Inc()
		p.record(opAdd, o, result.Shelf.Temperature)
	} else {
		reason := "no_space"
		if result.State == order.CameExpired {
			reason = "came_expired"
		}
		metrics.GetOrCreateCounter(fmt.Sprintf(`shelfpod_orders_rejected_total{reason=%q}`, reason)).Inc()
	}

	p.notifyPostAdd(o, result)
	Logger.Debugf("adding orderId=%s result=%v - done", o.ID(), result)
	return result
}

// moveOrder promotes an order out of the overflow shelf onto its native
// shelf. Only the mover workers call this: it blocks until the native shelf
// has a free slot. Precondition: the order's state is StoredInOverflow (a
// stale caller is resolved by the CAS inside, not by the precondition).
func (p *ShelfPod) moveOrder(o *order.Order) AddResult {
	result := p.store(o, order.StoredInOverflow, false)
	if result.Added {
		metrics.GetOrCreateCounter(fmt.Sprintf(`shelfpod_orders_moved_total{shelf=%q}`, o.Temperature())).Inc()
		p.record(opMove, o, o.Temperature())
	}
	return result
}

// RemoveOrder removes the order from the shared queue and releases the
// permit of the shelf it occupied. Returns false if the order was not
// queued. The permit release happens only after the removal is committed, so
// permit counts never undercount shelved orders.
func (p *ShelfPod) RemoveOrder(o *order.Order) bool {
	p.mu.Lock()
	_, removed := p.orders.RemoveByID(o.ID())
	p.mu.Unlock()
	if !removed {
		return false
	}

	shelfTemp := shelfTempWhileStored(o)
	p.spaces[shelfTemp].Release(1)
	p.record(opRemove, o, shelfTemp)
	return true
}

// ExpireOrder retires the order as waste. Returns false if the order was not
// in the shared queue (it may have been polled or moved concurrently, which
// makes the expiry stale and a no-op).
func (p *ShelfPod) ExpireOrder(o *order.Order) bool {
	p.mu.Lock()
	_, removed := p.orders.RemoveByID(o.ID())
	p.mu.Unlock()
	if !removed {
		return false
	}

	shelfTemp := shelfTempWhileStored(o)
	o.SetState(expiredState(shelfTemp))
	p.spaces[shelfTemp].Release(1)
	metrics.GetOrCreateCounter(fmt.Sprintf(`shelfpod_orders_expired_total{shelf=%q}`, shelfTemp)).Inc()
	p.record(opExpire, o, shelfTemp)
	Logger.Infof("expired orderId=%s on shelf=%s", o.ID(), shelfTemp)
	return true
}

// PollOrder implements IShelfPod. Time passes between enqueue and dequeue,
// so the head is re-validated on the way out: an expired head is retired and
// the next one tried.
func (p *ShelfPod) PollOrder() *order.Order {
	for {
		p.mu.Lock()
		o, ok := p.orders.Pop()
		p.mu.Unlock()
		if !ok {
			return nil
		}

		shelfTemp := shelfTempWhileStored(o)
		p.spaces[shelfTemp].Release(1)

		if o.HasExpired(p.factors[shelfTemp]) {
			o.SetState(expiredState(shelfTemp))
			metrics.GetOrCreateCounter(fmt.Sprintf(`shelfpod_orders_expired_total{shelf=%q}`, shelfTemp)).Inc()
			p.record(opExpire, o, shelfTemp)
			continue
		}

		o.SetState(order.PickedUpForDelivery)
		metrics.GetOrCreateCounter(`shelfpod_orders_delivered_total`).Inc()
		p.record(opPoll, o, shelfTemp)
		return o
	}
}

// ListOrders implements IShelfPod. The snapshot is taken under the queue
// lock, but the copies are detached: each entry is a deep copy carrying the
// state it had at snapshot time, filtered down to orders that were actually
// stored then, sorted the same way the queue is.
func (p *ShelfPod) ListOrders() []*order.Order {
	p.mu.Lock()
	snapshot := p.orders.Snapshot()
	p.mu.Unlock()

	listed := make([]*order.Order, 0, len(snapshot))
	for _, o := range snapshot {
		c := o.DeepCopy()
		if c.OnShelf() {
			listed = append(listed, c)
		}
	}
	sort.Slice(listed, func(i, j int) bool {
		return p.cmp.Less(listed[i], listed[j])
	})
	return listed
}

// --------------------------------------------------------------------------
// Observers
// --------------------------------------------------------------------------

// AddObserver implements IShelfPod.
func (p *ShelfPod) AddObserver(obs IShelfPodObserver) bool {
	_, loaded := p.observers.LoadOrStore(obs, struct{}{})
	return !loaded
}

// RemoveObserver implements IShelfPod.
func (p *ShelfPod) RemoveObserver(obs IShelfPodObserver) bool {
	_, loaded := p.observers.LoadAndDelete(obs)
	return loaded
}

// notifyPostAdd fans the add result out to all registered observers on the
// adding goroutine. The registry iterates weakly consistent, so observers
// may be added or removed mid-notification without disturbing the loop. A
// panicking observer is contained and logged; the remaining observers are
// still notified.
func (p *ShelfPod) notifyPostAdd(o *order.Order, result AddResult) {
	p.observers.Range(func(obs IShelfPodObserver, _ struct{}) bool {
		func() {
			defer func() {
				if r := recover(); r != nil {
					Logger.Errorf("observer panicked on orderId=%s: %v", o.ID(), r)
				}
			}()
			obs.PostAddOrder(o, result)
		}()
		return true
	})
}

// record appends an entry to the update log. Push only fails once the pod is
// shut down, at which point the worker queues no longer need maintenance.
func (p *ShelfPod) record(op operation, o *order.Order, shelfTemp order.Temperature) {
	p.updates.Push(&update{op: op, ord: o, shelf: shelfTemp})
}
