// Package agents implements the built-in audit agents: repository cloning,
// security analysis, code review, and report generation. Each agent is an
// orchestrator task that reads its inputs from the shared context and
// publishes its outputs back under the run's subtree.
package agents

import (
	"fmt"

	"github.com/ShayCichocki/skout/internal/llm"
	"github.com/ShayCichocki/skout/internal/orchestrator"
	"github.com/ShayCichocki/skout/pkg/models"
)

// Agent kind identifiers used by pipeline definitions.
const (
	KindGitHubCloner    = "github_cloner"
	KindSecurityAnalyst = "security_analyst"
	KindCodeReviewer    = "code_reviewer"
	KindReporter        = "reporter"
)

// Deps carries the shared dependencies the built-in agents need.
type Deps struct {
	// Provider answers LLM prompts for the analysis agents.
	Provider llm.Provider
	// RepoURL is the repository to audit. A local directory path is
	// used in place without cloning.
	RepoURL string
	// WorkDir is where cloned repositories are placed.
	WorkDir string
	// Options tunes analysis depth and scope.
	Options models.AnalysisOptions
}

// Catalog returns the task implementation for each built-in agent kind.
// Pipeline definitions reference agents by kind; unknown kinds are a
// setup error at pipeline build time.
func Catalog(deps Deps) map[string]orchestrator.TaskFunc {
	cloner := &Cloner{RepoURL: deps.RepoURL, WorkDir: deps.WorkDir, IncludeDeps: deps.Options.IncludeDeps}
	analyst := &SecurityAnalyst{Provider: deps.Provider, Deep: deps.Options.DeepAnalysis}
	reviewer := &CodeReviewer{Provider: deps.Provider}
	reporter := &Reporter{}

	return map[string]orchestrator.TaskFunc{
		KindGitHubCloner:    cloner.Run,
		KindSecurityAnalyst: analyst.Run,
		KindCodeReviewer:    reviewer.Run,
		KindReporter:        reporter.Run,
	}
}

// Task resolves a single agent kind from the catalog.
func Task(deps Deps, kind string) (orchestrator.TaskFunc, error) {
	task, ok := Catalog(deps)[kind]
	if !ok {
		return nil, fmt.Errorf("unknown agent kind: %s", kind)
	}
	return task, nil
}
