package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "compass",
	Short: "Workflow orchestration for small-business requests",
	Long: `Compass routes free-text business requests to specialized capability
executors. Each request is classified, cost-estimated, optionally held for
human approval, and dispatched, with every step recorded as a durable
workflow record.

Core pipeline:
- Classifies the request (keyword fast path, Claude fallback)
- Estimates execution cost and flags high-stakes capabilities
- Holds high-stakes work for approval
- Dispatches to the matching executor and records the outcome`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
