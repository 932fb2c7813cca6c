package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relay-hq/sentinel/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

All validation errors are reported together, with the dotted path of each
offending field.

Examples:
  # Validate the default config file
  sentinel validate

  # Validate a specific file
  sentinel validate --config /etc/sentinel/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Printf("  Listen address:    %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Rate limit:        strategy=%s capacity=%g rate=%g/s\n",
		cfg.Governance.RateLimit.Strategy,
		cfg.Governance.RateLimit.BucketCapacity,
		cfg.Governance.RateLimit.TokenRate,
	)
	fmt.Printf("  Circuit breaker:   threshold=%d reset=%s\n",
		cfg.Governance.CircuitBreaker.FailureThreshold,
		cfg.Governance.CircuitBreaker.ResetTimeout,
	)
	fmt.Printf("  Perf monitor:      window=%s keep=%d\n",
		cfg.Governance.PerfMonitor.Window,
		cfg.Governance.PerfMonitor.KeepWindows,
	)
	fmt.Printf("  Storage:           %s\n", cfg.Storage.Backend)
	return nil
}
