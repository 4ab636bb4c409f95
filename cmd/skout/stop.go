package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skout/internal/config"
	"github.com/ShayCichocki/skout/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active audit run",
	Long: `Request cancellation of the active audit run.

This writes a stop file to the configured signal directory. The running
skout process notices it, lets in-flight agents finish, and skips the
rest of the pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		w, err := signals.NewWatcher(cfg.Signals.Dir)
		if err != nil {
			return fmt.Errorf("open signal directory: %w", err)
		}
		defer w.Close()

		if err := w.SendStop(); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}

		fmt.Printf("Stop requested (%s)\n", w.Dir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
