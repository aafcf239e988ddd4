package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"edustack-hq/turnstile/pkg/config"
	"edustack-hq/turnstile/pkg/quota"
	"edustack-hq/turnstile/pkg/quota/costs"
	"edustack-hq/turnstile/pkg/quota/export"
	"edustack-hq/turnstile/pkg/quota/storage"
)

var exportFlags struct {
	period string
	start  string
	format string
	output string
	pretty bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export usage records",
	Long: `Export the usage ledger for a period as CSV or JSON.

Records are sorted most expensive first, matching the admin dashboard
ordering.

Examples:
  # Export today's usage as CSV to stdout
  turnstile export --format csv

  # Export the current month as pretty JSON to a file
  turnstile export --period monthly --format json --pretty --output usage.json

  # Export a past day
  turnstile export --start 2026-08-15 --format csv`,
	RunE: exportUsage,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFlags.period, "period", quota.PeriodDaily, "period type: daily or monthly")
	exportCmd.Flags().StringVar(&exportFlags.start, "start", "", "period start date (YYYY-MM-DD, default: current period)")
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "csv", "output format: csv or json")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().BoolVar(&exportFlags.pretty, "pretty", false, "indent JSON output")
}

func exportUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	if cfg.Storage.Backend != config.BackendSQLite {
		return fmt.Errorf("export requires the sqlite storage backend (configured: %s)", cfg.Storage.Backend)
	}

	backend, err := storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
		DBPath:      cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open usage database: %w", err)
	}
	defer backend.Close()

	model := costs.NewModel(costs.Rates{
		InputPerMillion:  cfg.Pricing.InputPerMillion,
		OutputPerMillion: cfg.Pricing.OutputPerMillion,
	})
	ledger := quota.NewLedger(backend, model, quota.LedgerConfig{})

	at := time.Now().UTC()
	if exportFlags.start != "" {
		at, err = time.ParseInLocation("2006-01-02", exportFlags.start, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid start date %q (expected YYYY-MM-DD)", exportFlags.start)
		}
	}
	start, _, err := quota.PeriodBounds(exportFlags.period, at)
	if err != nil {
		return err
	}

	ctx := context.Background()
	records, err := ledger.ListUsage(ctx, exportFlags.period, start)
	if err != nil {
		return fmt.Errorf("failed to list usage records: %w", err)
	}

	var out io.Writer = os.Stdout
	if exportFlags.output != "" {
		f, err := os.Create(exportFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch exportFlags.format {
	case "csv":
		err = export.NewCSVExporter(true).Export(ctx, records, out)
	case "json":
		err = export.NewJSONExporter(exportFlags.pretty).Export(ctx, records, out)
	default:
		return fmt.Errorf("unknown format %q (expected csv or json)", exportFlags.format)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportFlags.output != "" {
		fmt.Fprintf(os.Stderr, "✓ Exported %d record(s) to %s\n", len(records), exportFlags.output)
	}
	return nil
}
