package perf

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ValentinKolb/shelfpod/cmd/util"
	"github.com/ValentinKolb/shelfpod/lib/common"
	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/ValentinKolb/shelfpod/lib/shelf"
	"github.com/google/uuid"
	"github.com/kapetan-io/tackle/clock"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Run a synthetic load test against a shelf pod",
		Long:  `Run a synthetic load test against an in-process shelf pod: N producer goroutines add generated orders while M consumer goroutines poll them, and the add/poll latency distributions are printed at the end.`,
		RunE:  run,
	}
)

func init() {
	key := "producers"
	PerfCmd.PersistentFlags().Int(key, 8, util.WrapString("Number of concurrent producer goroutines"))

	key = "consumers"
	PerfCmd.PersistentFlags().Int(key, 8, util.WrapString("Number of concurrent consumer goroutines"))

	key = "orders"
	PerfCmd.PersistentFlags().Int(key, 10000, util.WrapString("Number of orders each producer adds"))

	key = "capacity"
	PerfCmd.PersistentFlags().Int(key, 1000, util.WrapString("Capacity of each regular shelf (overflow gets double)"))
}

// perfShelves builds a shelf layout sized for the load test.
func perfShelves(capacity int) []shelf.Shelf {
	shelves := make([]shelf.Shelf, 0, 4)
	for _, temp := range order.RegularTemperatures() {
		shelves = append(shelves, shelf.Shelf{
			ID:              fmt.Sprintf("%s-shelf", temp),
			Capacity:        capacity,
			Temperature:     temp,
			DecayRateFactor: 1,
		})
	}
	shelves = append(shelves, shelf.Shelf{
		ID:              "overflow-shelf",
		Capacity:        capacity * 2,
		Temperature:     order.Overflow,
		DecayRateFactor: 2,
	})
	return shelves
}

func run(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	common.InitLoggers("warn")

	producers := viper.GetInt("producers")
	consumers := viper.GetInt("consumers")
	perProducer := viper.GetInt("orders")
	capacity := viper.GetInt("capacity")

	pod, err := shelf.NewShelfPod(perfShelves(capacity), nil)
	if err != nil {
		return err
	}
	pod.StartBackgroundActivities()
	defer pod.StopBackgroundActivities()

	registry := gometrics.NewRegistry()
	addTimer := gometrics.GetOrRegisterTimer("add", registry)
	pollTimer := gometrics.GetOrRegisterTimer("poll", registry)
	polled := gometrics.GetOrRegisterCounter("polled", registry)

	clk := clock.NewProvider()
	regular := order.RegularTemperatures()

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(seed int64) {
			defer producerWg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perProducer; i++ {
				o := order.New(
					uuid.NewString(),
					"perf-order",
					regular[rng.Intn(len(regular))],
					300+rng.Intn(300),
					rng.Float64(),
					clk,
				)
				addTimer.Time(func() { pod.AddOrder(o) })
			}
		}(int64(p) + 1)
	}

	stopConsumers := make(chan struct{})
	var consumerWg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				select {
				case <-stopConsumers:
					return
				default:
				}
				var o *order.Order
				pollTimer.Time(func() { o = pod.PollOrder() })
				if o == nil {
					time.Sleep(time.Millisecond)
					continue
				}
				polled.Inc(1)
			}
		}()
	}

	producerWg.Wait()
	// let the consumers drain what the producers left behind
	time.Sleep(500 * time.Millisecond)
	close(stopConsumers)
	consumerWg.Wait()

	printTimer("add", addTimer)
	printTimer("poll", pollTimer)
	fmt.Printf("delivered: %d of %d orders\n", polled.Count(), producers*perProducer)
	return nil
}

// printTimer dumps the latency distribution of one operation.
func printTimer(name string, t gometrics.Timer) {
	fmt.Printf("%-5s count=%d mean=%.2fus p50=%.2fus p99=%.2fus max=%.2fus rate=%.0f/s\n",
		name,
		t.Count(),
		t.Mean()/1000,
		t.Percentile(0.5)/1000,
		t.Percentile(0.99)/1000,
		float64(t.Max())/1000,
		t.RateMean(),
	)
}
