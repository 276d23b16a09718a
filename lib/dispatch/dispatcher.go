package dispatch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/ValentinKolb/shelfpod/lib/shelf"
	"github.com/VictoriaMetrics/metrics"
	"github.com/kapetan-io/tackle/clock"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("dispatch")

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Config configures the dispatcher.
type Config struct {
	// Pod is polled for pickups.
	Pod shelf.IShelfPod
	// MinDelaySecs and MaxDelaySecs bound the simulated courier travel time;
	// each pickup waits a uniformly random number of seconds in
	// [MinDelaySecs, MaxDelaySecs].
	MinDelaySecs int
	MaxDelaySecs int
	// Clock supplies the pickup timers. Defaults to the system clock.
	Clock *clock.Provider
	// Rand draws the delays. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Dispatcher mocks the courier side of fulfillment. It registers itself as a
// pod observer; each successfully stored order triggers one delayed pickup
// goroutine. The observer callback itself only launches the goroutine, so it
// never blocks the adding thread.
type Dispatcher struct {
	conf Config

	randMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	bgMu    sync.Mutex
	running bool
}

// New creates a dispatcher. It does not observe the pod until
// StartBackgroundActivities is called.
func New(conf Config) *Dispatcher {
	if conf.Clock == nil {
		conf.Clock = clock.NewProvider()
	}
	if conf.Rand == nil {
		conf.Rand = rand.New(rand.NewSource(conf.Clock.Now().UnixNano()))
	}
	return &Dispatcher{conf: conf}
}

// StartBackgroundActivities registers the dispatcher with the pod. Calling
// it twice is a no-op.
func (d *Dispatcher) StartBackgroundActivities() {
	d.bgMu.Lock()
	defer d.bgMu.Unlock()
	if d.running {
		return
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.running = true
	d.conf.Pod.AddObserver(d)
	Logger.Infof("dispatcher started, pickup delay %d-%d sec", d.conf.MinDelaySecs, d.conf.MaxDelaySecs)
}

// StopBackgroundActivities unregisters from the pod, cancels pending
// pickups and waits for the pickup goroutines to exit.
func (d *Dispatcher) StopBackgroundActivities() {
	d.bgMu.Lock()
	if !d.running {
		d.bgMu.Unlock()
		return
	}
	d.running = false
	d.bgMu.Unlock()

	d.conf.Pod.RemoveObserver(d)
	d.cancel()
	d.wg.Wait()
	Logger.Infof("dispatcher stopped")
}

// PostAddOrder implements shelf.IShelfPodObserver. Runs on the adding
// goroutine, so all it does is schedule the pickup.
func (d *Dispatcher) PostAddOrder(o *order.Order, result shelf.AddResult) {
	if !result.Added {
		return
	}
	delay := time.Duration(d.pickupDelaySecs()) * time.Second
	d.wg.Add(1)
	go d.pickupAfter(delay)
	Logger.Debugf("dispatched courier for orderId=%s, arriving in %v", o.ID(), delay)
}

// pickupDelaySecs draws a uniform delay from [min, max]. The shared source
// is not goroutine-safe, hence the mutex; adds may fan in from many
// producer threads.
func (d *Dispatcher) pickupDelaySecs() int {
	d.randMu.Lock()
	defer d.randMu.Unlock()
	return d.conf.MinDelaySecs + d.conf.Rand.Intn(d.conf.MaxDelaySecs-d.conf.MinDelaySecs+1)
}

// pickupAfter waits out the courier travel time and then takes the
// soonest-to-expire order off the pod. The poll may come back empty: the
// order that triggered this courier may have expired, or an earlier courier
// took the last one. That is a missed trip, not an error.
func (d *Dispatcher) pickupAfter(delay time.Duration) {
	defer d.wg.Done()

	select {
	case <-d.conf.Clock.After(delay):
	case <-d.ctx.Done():
		return
	}

	if o := d.conf.Pod.PollOrder(); o != nil {
		metrics.GetOrCreateCounter(`shelfpod_pickups_total{result="delivered"}`).Inc()
		Logger.Infof("courier picked up %v", o)
	} else {
		metrics.GetOrCreateCounter(`shelfpod_pickups_total{result="empty"}`).Inc()
		Logger.Infof("courier arrived to empty shelves")
	}
}
