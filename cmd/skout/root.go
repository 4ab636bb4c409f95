package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skout",
	Short: "Repository audit orchestrator",
	Long: `Skout audits a repository with a team of coordinated analysis agents.

An audit clones the target repository, runs security analysis and code
review in parallel against an LLM, and collates everything into a final
report. Agents coordinate through a shared context store and message
broker, so downstream agents see upstream results as they land.

Core capabilities:
- Clones and fingerprints the repository structure
- LLM-backed security vulnerability analysis
- LLM-backed code quality review
- Aggregated report with prioritized findings
- Persistent run history for past audits`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
