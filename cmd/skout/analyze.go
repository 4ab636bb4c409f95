package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skout/internal/agents"
	"github.com/ShayCichocki/skout/internal/broker"
	"github.com/ShayCichocki/skout/internal/config"
	"github.com/ShayCichocki/skout/internal/contextstore"
	"github.com/ShayCichocki/skout/internal/llm"
	"github.com/ShayCichocki/skout/internal/orchestrator"
	"github.com/ShayCichocki/skout/internal/pipeline"
	"github.com/ShayCichocki/skout/internal/signals"
	"github.com/ShayCichocki/skout/internal/state"
	"github.com/ShayCichocki/skout/pkg/models"
)

var (
	analyzeDeep         bool
	analyzeIncludeDeps  bool
	analyzeParallel     int
	analyzePipelinePath string
	analyzeTimeout      time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo-url>",
	Short: "Audit a repository",
	Long: `Run a full audit against a repository.

The repository is cloned into a scratch directory, then the audit
pipeline runs: security analysis and code review execute in parallel
once the clone lands, and the reporter collates everything at the end.
The report survives partial failures, so a broken review stage still
yields security findings.

A run can be stopped out-of-band by creating a "stop" file in the
configured signal directory, or with Ctrl-C.

Examples:
  skout analyze https://github.com/acme/widget
  skout analyze https://github.com/acme/widget --deep-analysis
  skout analyze https://github.com/acme/widget --parallel 1
  skout analyze ./local-checkout --pipeline custom.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeDeep, "deep-analysis", false, "Sample more files during security analysis")
	analyzeCmd.Flags().BoolVar(&analyzeIncludeDeps, "include-deps", false, "Treat dependency manifests as security-relevant")
	analyzeCmd.Flags().IntVar(&analyzeParallel, "parallel", 0, "Maximum concurrent agents (1 forces sequential, 0 uses config)")
	analyzeCmd.Flags().StringVar(&analyzePipelinePath, "pipeline", "", "Path to a custom pipeline YAML")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 0, "Per-agent timeout (0 uses config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	repoURL := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	maxConcurrency := cfg.Analysis.MaxConcurrency
	if analyzeParallel > 0 {
		maxConcurrency = analyzeParallel
	}
	taskTimeout := cfg.Analysis.TaskTimeout
	if analyzeTimeout > 0 {
		taskTimeout = analyzeTimeout
	}

	provider, tracker, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	p := pipeline.Default()
	if analyzePipelinePath != "" {
		p, err = pipeline.Load(analyzePipelinePath)
		if err != nil {
			return err
		}
	}

	store := contextstore.New()
	defer store.Close()
	bus := broker.New()
	defer bus.Close()

	o := orchestrator.New(store, bus,
		orchestrator.WithMaxConcurrency(maxConcurrency),
		orchestrator.WithTaskTimeout(taskTimeout),
	)

	runID := uuid.New().String()
	deps := agents.Deps{
		Provider: provider,
		RepoURL:  repoURL,
		WorkDir:  cfg.Analysis.WorkDir,
		Options: models.AnalysisOptions{
			DeepAnalysis:   analyzeDeep || cfg.Analysis.DeepAnalysis,
			IncludeDeps:    analyzeIncludeDeps,
			MaxConcurrency: maxConcurrency,
		},
	}
	if err := p.Register(o, deps, runID); err != nil {
		return err
	}

	// Ctrl-C and the stop file both cancel the run; in-flight agents
	// finish and everything else is skipped.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := signals.NewWatcher(cfg.Signals.Dir)
	if err != nil {
		return fmt.Errorf("signal watcher: %w", err)
	}
	defer watcher.Close()
	ctx, release := watcher.Bind(ctx)
	defer release()

	go printEvents(o.Events())

	fmt.Printf("Auditing %s (run %s, pipeline %s)\n\n", repoURL, shortID(runID), p.Name)

	result, err := o.Run(ctx, runID)
	if err != nil {
		return fmt.Errorf("run audit: %w", err)
	}

	printSummary(result, store, runID)
	if tracker.Calls() > 0 {
		in, out := tracker.Total()
		fmt.Printf("\nTokens: %d in / %d out (~$%.4f)\n", in, out, tracker.Cost())
	}

	if err := saveRun(cfg, result, repoURL); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run history not saved: %v\n", err)
	}

	if !result.Success {
		return fmt.Errorf("audit did not complete successfully")
	}
	return nil
}

// buildProvider creates the LLM provider from configuration. The
// provider is wrapped in a single-entry chain so a fallback provider can
// be appended without touching callers. The token tracker is returned
// for cost reporting after the run.
func buildProvider(cfg *config.Config) (llm.Provider, *llm.TokenTracker, error) {
	apiKey := ""
	if !cfg.Anthropic.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or add anthropic.api_key to %s",
				err, config.GetUserConfigPath())
		}
		apiKey = key
	}

	primary, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, nil, err
	}

	return llm.NewChain(primary), primary.Tracker(), nil
}

// printEvents renders orchestrator progress as it happens.
func printEvents(events <-chan orchestrator.Event) {
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventAgentStarted:
			fmt.Printf("  %s %s\n", color.CyanString("▶"), ev.Agent)
		case orchestrator.EventAgentSucceeded:
			fmt.Printf("  %s %s\n", color.GreenString("✓"), ev.Agent)
		case orchestrator.EventAgentFailed:
			fmt.Printf("  %s %s: %v\n", color.RedString("✗"), ev.Agent, ev.Err)
		case orchestrator.EventAgentSkipped:
			fmt.Printf("  %s %s (%s)\n", color.YellowString("⊘"), ev.Agent, ev.Message)
		}
	}
}

// printSummary renders the final per-agent table and report highlights.
func printSummary(result *models.RunResult, store *contextstore.Store, runID string) {
	fmt.Println()
	if result.Success {
		fmt.Printf("%s Audit complete in %s\n", color.GreenString("✓"),
			result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	} else {
		reason := result.Reason
		if reason == "" {
			reason = "one or more agents failed"
		}
		fmt.Printf("%s Audit incomplete: %s\n", color.RedString("✗"), reason)
	}

	for _, name := range sortedAgentNames(result) {
		agent := result.Agents[name]
		fmt.Printf("  %-12s %s\n", name, stateLabel(agent))
	}

	report, ok := store.GetValue(runID + "/report").(agents.Report)
	if !ok {
		return
	}

	fmt.Println()
	fmt.Printf("Overall risk: %s   Quality: %.1f/10   Files: %d\n",
		riskLabel(report.OverallRisk), report.QualityScore, report.FilesAnalyzed)
	if len(report.CriticalFindings) > 0 {
		fmt.Println("Top findings:")
		for _, finding := range report.CriticalFindings {
			fmt.Printf("  - %s\n", finding)
		}
	}
	for _, rec := range report.Recommendations {
		fmt.Printf("  [%s/%s] %s\n", rec.Category, rec.Priority, rec.Action)
	}
}

func stateLabel(agent models.AgentResult) string {
	switch agent.State {
	case models.RunStateSucceeded:
		return color.GreenString(string(agent.State))
	case models.RunStateFailed:
		if agent.Error != "" {
			return color.RedString("%s: %s", agent.State, agent.Error)
		}
		return color.RedString(string(agent.State))
	case models.RunStateSkipped:
		return color.YellowString(string(agent.State))
	default:
		return string(agent.State)
	}
}

func riskLabel(risk string) string {
	switch risk {
	case "CRITICAL", "HIGH":
		return color.RedString(risk)
	case "MEDIUM":
		return color.YellowString(risk)
	case "LOW":
		return color.GreenString(risk)
	default:
		return risk
	}
}

func sortedAgentNames(result *models.RunResult) []string {
	names := make([]string, 0, len(result.Agents))
	for name := range result.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func shortID(id string) string {
	if i := strings.Index(id, "-"); i > 0 {
		return id[:i]
	}
	return id
}

func saveRun(cfg *config.Config, result *models.RunResult, repoURL string) error {
	db, err := state.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	return db.SaveRun(result, repoURL)
}
