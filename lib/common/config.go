package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Service configuration struct
// --------------------------------------------------------------------------

// ShelfConfig describes one shelf as given on the command line or in the
// environment.
type ShelfConfig struct {
	Temperature     string
	Capacity        int
	DecayRateFactor float64
}

// ServiceConfig holds all configuration parameters for the fulfillment
// service daemons.
type ServiceConfig struct {
	// Shelf layout, one entry per temperature including overflow
	Shelves []ShelfConfig

	// Kitchen parameters
	OrdersFile           string
	PoissonMeanPerSecond float64

	// Dispatcher parameters
	MinPickupDelaySecs int
	MaxPickupDelaySecs int

	// HTTP api settings
	Endpoint string

	// Logging configuration
	LogLevel string
}

// Validate checks the parts of the configuration that flag parsing cannot.
func (c *ServiceConfig) Validate() error {
	if c.PoissonMeanPerSecond <= 0 {
		return fmt.Errorf("poisson mean must be positive, got %g", c.PoissonMeanPerSecond)
	}
	if c.MinPickupDelaySecs < 0 || c.MaxPickupDelaySecs < c.MinPickupDelaySecs {
		return fmt.Errorf("invalid pickup delay range [%d, %d]", c.MinPickupDelaySecs, c.MaxPickupDelaySecs)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServiceConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Shelves")
	for _, shelf := range c.Shelves {
		addField(shelf.Temperature, fmt.Sprintf("capacity=%d decayRateFactor=%g", shelf.Capacity, shelf.DecayRateFactor))
	}

	addSection("Kitchen")
	addField("Orders file", c.OrdersFile)
	addField("Poisson mean", fmt.Sprintf("%g orders/sec", c.PoissonMeanPerSecond))

	addSection("Dispatcher")
	addField("Pickup delay", fmt.Sprintf("%d-%d sec", c.MinPickupDelaySecs, c.MaxPickupDelaySecs))

	addSection("HTTP Server")
	addField("Endpoint", c.Endpoint)

	addSection("Logging")
	addField("Log level", c.LogLevel)

	return sb.String()
}
