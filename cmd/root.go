// Package cmd implements the schemadrift CLI: a thin cobra front end over
// the core engine (schema, describe, diff, check, render, apply). It is a
// consumer of the core's contract, not part of it.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schemadrift",
	Short: "schemadrift computes and applies SQL schema migrations",
	Long: `schemadrift introspects a live database, diffs it against a target
schema, and renders the dialect-specific DDL needed to get from one to the
other.`,
}

// Execute runs the CLI, exiting the process with a non-zero status on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvironment, "environment", "", "named environment from schemadrift.toml")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "connection string (overrides --environment)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "stream per-statement progress")
}

var (
	flagEnvironment string
	flagDB          string
	flagVerbose     bool
)
