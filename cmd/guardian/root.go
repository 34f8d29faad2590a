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
	Use:   "guardian",
	Short: "Guardian - policy evaluation and tool guarding for agent systems",
	Long: `Guardian evaluates declarative policy rules against agent decision
contexts and guards tool operations so every invocation is checked before it
runs.

It provides:
  - A deterministic, fail-closed policy evaluation engine
  - Tool guarding with a bounded audit trail (enforce or log-only)
  - Heuristic and language-model repair of rejected actions
  - An admin HTTP API for policy management and test evaluation`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
