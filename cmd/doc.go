// Package cmd implements the command-line interface for the shelfpod
// fulfillment service.
//
// The package is organized into several subpackages:
//
//   - serve: Runs the fulfillment daemons (shelf pod, kitchen, dispatcher)
//   - perf: Synthetic load generator for measuring pod throughput
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See shelfpod -help for a list of all commands.
package cmd
