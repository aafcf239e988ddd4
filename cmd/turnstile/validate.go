package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"edustack-hq/turnstile/pkg/config"
	"edustack-hq/turnstile/pkg/tiers"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and environment
overrides, and report every validation problem found.

The effective tier limits (built-in defaults merged with any
overrides) are printed so operators can confirm what the admission
controller will enforce.

Examples:
  # Validate the default config file
  turnstile validate

  # Validate a specific file
  turnstile validate --config /etc/turnstile/turnstile.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ %d problem(s) in %s:\n", len(verr.Errors), cfgFile)
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s\n", fe.Error())
			}
			return fmt.Errorf("configuration invalid")
		}
		return err
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Println()
	fmt.Printf("Server:  %s\n", cfg.Server.ListenAddress)
	fmt.Printf("Storage: %s", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendSQLite {
		fmt.Printf(" (%s)", cfg.Storage.Path)
	}
	fmt.Println()
	fmt.Printf("Audit:   enabled=%t backend=%s\n", cfg.Audit.AuditEnabled(), cfg.Audit.Backend)
	fmt.Println()

	fmt.Println("Effective tier limits:")
	limits := cfg.TierLimits()
	for _, name := range tiers.Ordering {
		l := limits[name]
		fmt.Printf("  %-10s %5d/min (+%d burst)  %6d/hour  %7d/day\n",
			name, l.RequestsPerMinute, l.BurstSize, l.RequestsPerHour, l.RequestsPerDay)
	}

	return nil
}
