package kitchen

import (
	"context"
	"math/rand"
	"time"

	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/ValentinKolb/shelfpod/lib/shelf"
	"github.com/google/uuid"
	"github.com/kapetan-io/tackle/clock"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("kitchen")

// --------------------------------------------------------------------------
// Kitchen producer
// --------------------------------------------------------------------------

// Config configures the kitchen producer.
type Config struct {
	// Pod receives the produced orders.
	Pod shelf.IShelfPod
	// PoissonMeanPerSecond is the average number of orders submitted per
	// second.
	PoissonMeanPerSecond float64
	// DrainDelaySecs is how long the kitchen lingers after the last order so
	// in-flight pickups can complete before the caller tears everything
	// down. Usually the dispatcher's maximum pickup delay plus a margin.
	DrainDelaySecs int
	// Clock supplies wall time. Defaults to the system clock.
	Clock *clock.Provider
	// Rand drives the Poisson sampling. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Kitchen submits orders from an input list to the pod in per-second
// batches whose sizes follow a Poisson distribution.
type Kitchen struct {
	conf    Config
	sampler *PoissonSampler
}

// New creates a kitchen producer.
func New(conf Config) *Kitchen {
	if conf.Clock == nil {
		conf.Clock = clock.NewProvider()
	}
	if conf.Rand == nil {
		conf.Rand = rand.New(rand.NewSource(conf.Clock.Now().UnixNano()))
	}
	return &Kitchen{
		conf:    conf,
		sampler: NewPoissonSampler(conf.PoissonMeanPerSecond, conf.Rand),
	}
}

// Run submits every input to the pod and returns the orders it created, in
// submission sequence. It blocks until all inputs are submitted and the
// drain delay elapsed, or until the context is canceled.
func (k *Kitchen) Run(ctx context.Context, inputs []OrderInput) []*order.Order {
	Logger.Infof("kitchen starting, %d orders to submit at ~%g/sec", len(inputs), k.conf.PoissonMeanPerSecond)

	orders := make([]*order.Order, 0, len(inputs))
	next := 0
	for next < len(inputs) {
		batch := k.sampler.Sample()
		for i := 0; i < batch && next < len(inputs); i++ {
			o, err := k.submit(inputs[next])
			next++
			if err != nil {
				Logger.Errorf("skipping invalid order input: %v", err)
				continue
			}
			orders = append(orders, o)
		}

		k.logShelfSnapshot()

		// one batch per second is what the Poisson mean is calibrated to
		select {
		case <-k.conf.Clock.After(time.Second):
		case <-ctx.Done():
			Logger.Warningf("kitchen interrupted with %d orders unsubmitted", len(inputs)-next)
			return orders
		}
	}

	// the last batch is only picked up after the courier delay, so linger
	// before reporting
	select {
	case <-k.conf.Clock.After(time.Duration(k.conf.DrainDelaySecs) * time.Second):
	case <-ctx.Done():
	}

	k.logOutcomes(orders)
	return orders
}

// submit converts one input line to an order and places it on the pod.
func (k *Kitchen) submit(input OrderInput) (*order.Order, error) {
	temp, err := order.ParseTemperature(input.Temp)
	if err != nil {
		return nil, err
	}
	o := order.New(uuid.NewString(), input.Name, temp, input.ShelfLife, input.DecayRate, k.conf.Clock)
	result := k.conf.Pod.AddOrder(o)
	Logger.Debugf("submitted orderId=%s result=%v", o.ID(), result)
	return o, nil
}

// logShelfSnapshot logs the orders currently on the shelves, one line each.
func (k *Kitchen) logShelfSnapshot() {
	listed := k.conf.Pod.ListOrders()
	Logger.Infof("---- %d orders currently on the shelves ----", len(listed))
	for _, o := range listed {
		Logger.Infof("shelved %v", o)
	}
}

// logOutcomes logs the final state of every submitted order plus a tally.
func (k *Kitchen) logOutcomes(orders []*order.Order) {
	tally := make(map[order.State]int)
	for _, o := range orders {
		tally[o.State()]++
		Logger.Infof("final %v", o)
	}
	for state, count := range tally {
		Logger.Infof("outcome %s: %d orders", state, count)
	}
}
