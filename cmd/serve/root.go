package serve

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ValentinKolb/shelfpod/cmd/util"
	"github.com/ValentinKolb/shelfpod/lib/common"
	"github.com/ValentinKolb/shelfpod/lib/dispatch"
	"github.com/ValentinKolb/shelfpod/lib/kitchen"
	"github.com/ValentinKolb/shelfpod/lib/order"
	"github.com/ValentinKolb/shelfpod/lib/shelf"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sugawarayuuta/sonnet"
)

var Logger = logger.GetLogger("serve")

var (
	serveCmdConfig = &common.ServiceConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Run the fulfillment daemons",
		Long:    `Run the fulfillment daemons: the shelf pod with its background workers, the kitchen producer feeding orders from a file, and the courier dispatcher. The configuration can be set via command line flags or environment variables. The format of the environment variables is SHELFPOD_<flag> (e.g. SHELFPOD_POISSON_MEAN=3.25)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// add flags
	key := "orders-file"
	ServeCmd.PersistentFlags().String(key, "orders.json", util.WrapString("Path to the orders JSON file the kitchen produces from"))

	key = "shelves"
	ServeCmd.PersistentFlags().String(key, "hot=15:1,cold=15:1,frozen=15:1,overflow=20:2", util.WrapString("Comma-separated shelf layout. Format: TEMP=CAPACITY:DECAYFACTOR with one entry per temperature (hot, cold, frozen, overflow)"))

	key = "poisson-mean"
	ServeCmd.PersistentFlags().Float64(key, 3.25, util.WrapString("Average number of orders the kitchen submits per second (Poisson distributed)"))

	key = "min-pickup-delay"
	ServeCmd.PersistentFlags().Int(key, 2, util.WrapString("Minimum courier travel time in seconds"))

	key = "max-pickup-delay"
	ServeCmd.PersistentFlags().Int(key, 10, util.WrapString("Maximum courier travel time in seconds"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", util.WrapString("The address on which the status API will listen (GET /orders, GET /metrics)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the service configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	shelves, err := util.ParseShelves(viper.GetString("shelves"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shelves = shelves

	serveCmdConfig.OrdersFile = viper.GetString("orders-file")
	serveCmdConfig.PoissonMeanPerSecond = viper.GetFloat64("poisson-mean")
	serveCmdConfig.MinPickupDelaySecs = viper.GetInt("min-pickup-delay")
	serveCmdConfig.MaxPickupDelaySecs = viper.GetInt("max-pickup-delay")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// buildShelves converts the shelf configuration to pod shelf descriptors.
func buildShelves(configs []common.ShelfConfig) ([]shelf.Shelf, error) {
	shelves := make([]shelf.Shelf, 0, len(configs))
	for _, c := range configs {
		temp, err := order.ParseTemperature(c.Temperature)
		if err != nil {
			return nil, err
		}
		shelves = append(shelves, shelf.Shelf{
			ID:              fmt.Sprintf("%s-shelf", c.Temperature),
			Capacity:        c.Capacity,
			Temperature:     temp,
			DecayRateFactor: c.DecayRateFactor,
		})
	}
	return shelves, nil
}

// run starts the fulfillment daemons and blocks until the orders file is
// drained or the process is interrupted.
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)
	Logger.Infof("configuration: %v", serveCmdConfig)

	shelves, err := buildShelves(serveCmdConfig.Shelves)
	if err != nil {
		return err
	}

	pod, err := shelf.NewShelfPod(shelves, nil)
	if err != nil {
		return err
	}

	inputs, err := kitchen.ReadOrdersFile(serveCmdConfig.OrdersFile)
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(dispatch.Config{
		Pod:          pod,
		MinDelaySecs: serveCmdConfig.MinPickupDelaySecs,
		MaxDelaySecs: serveCmdConfig.MaxPickupDelaySecs,
	})

	producer := kitchen.New(kitchen.Config{
		Pod:                  pod,
		PoissonMeanPerSecond: serveCmdConfig.PoissonMeanPerSecond,
		DrainDelaySecs:       serveCmdConfig.MaxPickupDelaySecs + 2,
	})

	// observers first, then the pod's own workers, then traffic
	dispatcher.StartBackgroundActivities()
	pod.StartBackgroundActivities()
	defer pod.StopBackgroundActivities()
	defer dispatcher.StopBackgroundActivities()

	go serveStatusAPI(pod)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer.Run(ctx, inputs)
	return nil
}

// --------------------------------------------------------------------------
// Status API
// --------------------------------------------------------------------------

// orderView is the JSON shape of one listed order.
type orderView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Temp          string  `json:"temp"`
	State         string  `json:"state"`
	ShelfLifeSecs int     `json:"shelfLifeSecs"`
	DecayRate     float64 `json:"decayRate"`
}

// serveStatusAPI exposes the shelf snapshot and the Prometheus metrics.
func serveStatusAPI(pod shelf.IShelfPod) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		listed := pod.ListOrders()
		views := make([]orderView, 0, len(listed))
		for _, o := range listed {
			views = append(views, orderView{
				ID:            o.ID(),
				Name:          o.Name(),
				Temp:          o.Temperature().String(),
				State:         o.State().String(),
				ShelfLifeSecs: o.ShelfLifeSecs(),
				DecayRate:     o.DecayRate(),
			})
		}

		body, err := sonnet.Marshal(views)
		if err != nil {
			http.Error(w, "failed to encode orders", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	Logger.Infof("starting status API on %s", serveCmdConfig.Endpoint)
	if err := http.ListenAndServe(serveCmdConfig.Endpoint, mux); err != nil {
		Logger.Errorf("status API stopped: %v", err)
	}
}
