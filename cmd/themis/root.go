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
	Use:   "themis",
	Short: "Themis - policy and compliance governance engine",
	Long: `Themis governs software delivery operations with versioned,
scope-inherited policies and compliance standards.

It provides:
  - A versioned policy store with organization/project/resource inheritance
  - Compliance validators for CMMI, SOX, GDPR and ISO 27001
  - Deterministic policy evaluation with conflict resolution
  - Enforcement with a time-bounded exception workflow
  - A hash-chained, tamper-evident audit ledger`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
