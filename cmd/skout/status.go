package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skout/internal/config"
	"github.com/ShayCichocki/skout/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show audit run history",
	Long: `Display past audit runs.

Without arguments, lists the most recent runs. With a run ID, shows the
per-agent results for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := os.Stat(cfg.Storage.DBPath); os.IsNotExist(err) {
		fmt.Println("No audit history. Run 'skout analyze <repo-url>' to start.")
		return nil
	}

	db, err := state.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(args) == 1 {
		return displayRun(db, args[0])
	}
	return displayRecentRuns(db)
}

func displayRecentRuns(db *state.DB) error {
	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No audit history. Run 'skout analyze <repo-url>' to start.")
		return nil
	}

	for _, run := range runs {
		outcome := color.GreenString("ok")
		if !run.Success {
			outcome = color.RedString("failed")
			if run.Reason != "" {
				outcome = color.RedString("failed: %s", run.Reason)
			}
		}
		fmt.Printf("%s  %-40s %s  %s\n",
			shortID(run.ID), run.RepoURL, run.StartedAt.Local().Format("2006-01-02 15:04"), outcome)
	}

	return nil
}

func displayRun(db *state.DB, runID string) error {
	record, err := db.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", record.ID)
	fmt.Printf("  Repository: %s\n", record.RepoURL)
	fmt.Printf("  Started: %s\n", record.StartedAt.Local().Format(time.RFC1123))
	if !record.FinishedAt.IsZero() {
		fmt.Printf("  Duration: %s\n", record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
	}
	if record.Success {
		fmt.Printf("  Outcome: %s\n", color.GreenString("success"))
	} else if record.Reason != "" {
		fmt.Printf("  Outcome: %s\n", color.RedString("failed: %s", record.Reason))
	} else {
		fmt.Printf("  Outcome: %s\n", color.RedString("failed"))
	}

	names := make([]string, 0, len(record.Agents))
	for name := range record.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("  Agents:")
	for _, name := range names {
		fmt.Printf("    %-12s %s\n", name, stateLabel(record.Agents[name]))
	}

	return nil
}
