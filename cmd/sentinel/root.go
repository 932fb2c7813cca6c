package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - request governance layer for HTTP services",
	Long: `Sentinel is a request governance layer that protects HTTP services
with three cooperating safeguards:

  - Token bucket rate limiting with per-user, per-tenant, and
    per-endpoint key strategies
  - A circuit breaker that sheds load when the backend degrades
  - A sliding-window performance monitor with latency percentiles

Rejected requests receive structured 429/503 responses with rate limit
and breaker diagnostic headers. Operators can inspect and override the
breaker through the admin endpoints.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
