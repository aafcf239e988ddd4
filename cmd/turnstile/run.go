package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"edustack-hq/turnstile/pkg/admission"
	"edustack-hq/turnstile/pkg/admission/identity"
	"edustack-hq/turnstile/pkg/audit"
	"edustack-hq/turnstile/pkg/cli"
	"edustack-hq/turnstile/pkg/config"
	"edustack-hq/turnstile/pkg/quota"
	"edustack-hq/turnstile/pkg/quota/costs"
	"edustack-hq/turnstile/pkg/quota/storage"
	"edustack-hq/turnstile/pkg/server"
	"edustack-hq/turnstile/pkg/telemetry/health"
	"edustack-hq/turnstile/pkg/telemetry/logging"
	"edustack-hq/turnstile/pkg/tiers"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the turnstile server",
	Long: `Start the turnstile admin server with the specified configuration.

The admission controller, usage ledger, and audit trail are wired up
from the configuration and exposed on the admin HTTP surface.

Examples:
  # Start with default config
  turnstile run

  # Start with custom config
  turnstile run --config /etc/turnstile/turnstile.yaml

  # Override listen address
  turnstile run --listen 0.0.0.0:8090

  # Validate config without starting the server
  turnstile run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Install()

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	fmt.Printf("Turnstile v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Tier catalog with config overrides applied.
	catalog, err := tiers.NewCatalog(cfg.TierLimits())
	if err != nil {
		return fmt.Errorf("invalid tier limits: %w", err)
	}

	// Cost model, optionally hot-reloading when the config file
	// pricing section changes on disk.
	model := costs.NewModel(costs.Rates{
		InputPerMillion:  cfg.Pricing.InputPerMillion,
		OutputPerMillion: cfg.Pricing.OutputPerMillion,
	})
	if cfg.Pricing.Watch {
		watcher, err := costs.NewWatcher(model, cfgFile, func() (costs.Rates, error) {
			fresh, err := config.LoadConfigWithEnvOverrides(cfgFile)
			if err != nil {
				return costs.Rates{}, err
			}
			return costs.Rates{
				InputPerMillion:  fresh.Pricing.InputPerMillion,
				OutputPerMillion: fresh.Pricing.OutputPerMillion,
			}, nil
		})
		if err != nil {
			return fmt.Errorf("failed to create pricing watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start pricing watcher: %w", err)
		}
		defer watcher.Close()
		logger.Info("pricing hot-reload enabled", "path", cfgFile)
	}

	// Quota storage backend and ledger.
	var backend quota.Backend
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		backend, err = storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
			DBPath:      cfg.Storage.Path,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to open usage database: %w", err)
		}
	case config.BackendMemory:
		backend = storage.NewMemoryBackend()
	default:
		return fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
	defer backend.Close()

	ledger := quota.NewLedger(backend, model, quota.LedgerConfig{
		Metrics: quota.NewMetrics(),
	})
	fmt.Printf("✓ Usage ledger initialized (%s backend)\n", cfg.Storage.Backend)

	// Admission controller.
	ctrl := admission.NewController(admission.Config{
		GlobalPerMinute:   cfg.Limits.GlobalPerMinute,
		GlobalPerHour:     cfg.Limits.GlobalPerHour,
		IPPerMinute:       cfg.Limits.IPPerMinute,
		IPPerHour:         cfg.Limits.IPPerHour,
		WindowCapacity:    cfg.Limits.WindowCapacity,
		UserBlockDuration: cfg.Limits.UserBlockDuration,
		IPBlockDuration:   cfg.Limits.IPBlockDuration,
		JanitorInterval:   cfg.Limits.JanitorInterval,
	}, catalog, identity.NewResolver(nil), admission.NewMetrics())
	defer ctrl.Close()
	fmt.Println("✓ Admission controller initialized")

	// Audit trail.
	var auditStore audit.Store
	var recorder *audit.Recorder
	if cfg.Audit.AuditEnabled() {
		switch cfg.Audit.Backend {
		case config.BackendSQLite:
			auditStore, err = audit.NewSQLiteStore(&audit.SQLiteConfig{
				Path: cfg.Audit.Path,
			})
			if err != nil {
				return fmt.Errorf("failed to open audit database: %w", err)
			}
		case config.BackendMemory:
			auditStore = audit.NewMemoryStore()
		default:
			return fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
		}
		defer auditStore.Close()

		auditMetrics := audit.NewMetrics()
		recorder = audit.NewRecorder(auditStore, audit.RecorderConfig{
			Buffer:       cfg.Audit.Buffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
			Metrics:      auditMetrics,
		})
		defer recorder.Close()

		pruner := audit.NewPruner(auditStore, audit.RetentionConfig{
			RetentionDays: cfg.Audit.RetentionDays,
			Schedule:      cfg.Audit.RetentionSchedule,
			Metrics:       auditMetrics,
		})
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start audit retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextRun(); next != nil {
				logger.Debug("audit retention scheduler started", "next_run", next)
			}
		}

		fmt.Printf("✓ Audit trail initialized (%s backend)\n", cfg.Audit.Backend)
	}

	// Health checks: a storage probe plus admission utilization.
	checker := health.New(0)
	checker.RegisterCheck("storage", storageCheck(ledger))
	checker.RegisterCheck("admission", health.UtilizationCheck(ctrl.GlobalUtilization))

	srv := server.NewServer(&cfg.Server, server.Deps{
		Controller: ctrl,
		Ledger:     ledger,
		Recorder:   recorder,
		AuditStore: auditStore,
		Health:     checker,
		Build: server.BuildInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
		},
	})

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// storageCheck probes the quota backend through the ledger with a
// read for a user that never exists.
func storageCheck(ledger *quota.Ledger) health.CheckFunc {
	return func(ctx context.Context) error {
		_, err := ledger.GetUsage(ctx, "healthcheck", quota.PeriodDaily)
		return err
	}
}
