package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/shelfpod/cmd/perf"
	"github.com/ValentinKolb/shelfpod/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "shelfpod",
		Short: "prepared-food fulfillment service",
		Long: fmt.Sprintf(`shelfpod (v%s)

A fulfillment service for prepared-food orders: a kitchen places orders on
temperature-controlled shelves, orders decay over time depending on the shelf
they sit on, and couriers pick up whichever valid order expires soonest.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of shelfpod",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shelfpod v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
