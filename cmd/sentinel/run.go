package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/spf13/cobra"

	"relay-hq/sentinel/pkg/config"
	"relay-hq/sentinel/pkg/governance"
	"relay-hq/sentinel/pkg/governance/circuit"
	"relay-hq/sentinel/pkg/governance/perfmon"
	"relay-hq/sentinel/pkg/governance/ratelimit"
	"relay-hq/sentinel/pkg/governance/storage"
	"relay-hq/sentinel/pkg/server"
	"relay-hq/sentinel/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	upstream      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Sentinel server",
	Long: `Start the Sentinel server with the specified configuration.

The server listens on the configured address and passes traffic through
the rate limiter, circuit breaker, and performance monitor before it
reaches the upstream.

Examples:
  # Start with default config
  sentinel run

  # Start with custom config
  sentinel run --config /etc/sentinel/config.yaml

  # Override listen address and upstream
  sentinel run --listen 0.0.0.0:8080 --upstream http://127.0.0.1:9000

  # Validate config without starting server
  sentinel run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.upstream, "upstream", "", "override upstream URL")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.upstream != "" {
		cfg.Server.UpstreamURL = runFlags.upstream
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logger.SetDefault()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	// Flight recorder backend
	var recorder storage.Backend
	if !cfg.Storage.Disabled {
		switch cfg.Storage.Backend {
		case "sqlite":
			recorder, err = storage.NewSQLiteBackend(cfg.Storage.SQLite.Path)
			if err != nil {
				return fmt.Errorf("failed to open sqlite storage: %w", err)
			}
		default:
			recorder = storage.NewMemoryBackend(cfg.Storage.MaxEntries)
		}
		fmt.Printf("✓ Flight recorder initialized (%s)\n", cfg.Storage.Backend)
	}

	// Governor
	gov, err := governance.NewGovernor(governanceConfig(cfg, recorder))
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return fmt.Errorf("failed to build governor: %w", err)
	}
	defer gov.Close()
	fmt.Printf("✓ Governance initialized (strategy=%s, failure_threshold=%d)\n",
		cfg.Governance.RateLimit.Strategy,
		cfg.Governance.CircuitBreaker.FailureThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background maintenance
	if !cfg.Maintenance.Disabled {
		maint := server.NewMaintenance(server.MaintenanceConfig{
			CleanupSchedule: cfg.Maintenance.CleanupSchedule,
			RetentionDays:   cfg.Storage.RetentionDays,
		}, gov, recorder)
		if err := maint.Start(ctx); err != nil {
			return fmt.Errorf("failed to start maintenance: %w", err)
		}
		defer maint.Stop()
		if next := maint.NextCleanup(); next != nil {
			slog.Debug("maintenance started", "next_cleanup", next)
		}
	}

	// Configuration hot reload only logs the change; a restart applies it.
	if cfg.Watch {
		watcher, err := config.NewFileWatcher(cfgFile, slog.Default())
		if err != nil {
			slog.Warn("failed to create config watcher", "error", err)
		} else {
			go watcher.Watch(ctx, func() error {
				if _, err := config.LoadConfigWithEnvOverrides(cfgFile); err != nil {
					return err
				}
				slog.Info("configuration changed on disk, restart to apply")
				return nil
			})
			defer watcher.Stop()
		}
	}

	app, err := appHandler(cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, gov, app, server.Options{Recorder: recorder})

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if !cfg.Telemetry.Metrics.Disabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal, context cancellation, or server error.
	return srv.Start(ctx)
}

// governanceConfig maps the file configuration onto the governor's config.
func governanceConfig(cfg *config.Config, recorder storage.Backend) governance.Config {
	rl := cfg.Governance.RateLimit
	cb := cfg.Governance.CircuitBreaker
	pm := cfg.Governance.PerfMonitor

	return governance.Config{
		BreakerName: cfg.Governance.BreakerName,
		Recorder:    recorder,
		RateLimit: ratelimit.Config{
			Window:                 rl.Window,
			MaxRequests:            rl.MaxRequests,
			BucketCapacity:         rl.BucketCapacity,
			TokenRate:              rl.TokenRate,
			TokensPerRequest:       rl.TokensPerRequest,
			Strategy:               ratelimit.Strategy(rl.Strategy),
			SkipSuccessfulRequests: rl.SkipSuccessfulRequests,
			SkipFailedRequests:     rl.SkipFailedRequests,
			Response: ratelimit.ResponseConfig{
				StatusCode: rl.ResponseStatusCode,
				Message:    rl.ResponseMessage,
			},
		},
		Circuit: circuit.Config{
			FailureThreshold:     uint64(cb.FailureThreshold),
			FailureRateThreshold: cb.FailureRateThreshold,
			VolumeThreshold:      uint64(cb.VolumeThreshold),
			ResetTimeout:         cb.ResetTimeout,
			MonitoringPeriod:     cb.MonitoringPeriod,
			HalfOpenMaxRequests:  uint32(cb.HalfOpenMaxRequests),
			DisableAutoRecovery:  cb.DisableAutoRecovery,
			Response: circuit.ResponseConfig{
				StatusCode: cb.ResponseStatusCode,
				Message:    cb.ResponseMessage,
			},
		},
		Perf: perfmon.Config{
			Window:         pm.Window,
			KeepWindows:    pm.KeepWindows,
			RingCapacity:   pm.RingCapacity,
			ByRoute:        pm.ByRoute,
			ByMethod:       pm.ByMethod,
			ByStatusBucket: pm.ByStatusBucket,
		},
		DisableMetrics: cfg.Telemetry.Metrics.Disabled,
	}
}

// appHandler builds the governed application handler: a reverse proxy when
// an upstream is configured, otherwise a built-in status handler.
func appHandler(cfg *config.Config) (http.Handler, error) {
	if cfg.Server.UpstreamURL == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ok",
				"path":   r.URL.Path,
			})
		}), nil
	}

	target, err := url.Parse(cfg.Server.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", cfg.Server.UpstreamURL, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("upstream request failed", "upstream", target.Host, "error", err)
		// A dead upstream must register as a failure with the breaker.
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Sentinel v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("rate limit configured",
		"strategy", cfg.Governance.RateLimit.Strategy,
		"bucket_capacity", cfg.Governance.RateLimit.BucketCapacity,
		"token_rate", cfg.Governance.RateLimit.TokenRate,
	)
	slog.Debug("circuit breaker configured",
		"failure_threshold", cfg.Governance.CircuitBreaker.FailureThreshold,
		"reset_timeout", cfg.Governance.CircuitBreaker.ResetTimeout,
	)
	if cfg.Server.UpstreamURL != "" {
		slog.Debug("upstream configured", "url", cfg.Server.UpstreamURL)
	}
}
