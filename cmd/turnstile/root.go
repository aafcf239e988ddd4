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
	Use:   "turnstile",
	Short: "Turnstile - admission control and quota governance",
	Long: `Turnstile is an admission control and quota governance service that
guards a shared AI backend against cost overruns and abuse.

It provides:
  - Tier-based rate limiting (minute, hour, day windows with burst)
  - Global load shedding across all callers
  - Per-IP ceilings with escalating temporary blocks
  - A persisted usage ledger tracking tokens and cost per user
  - An audit trail of denials and blocks`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "turnstile.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
