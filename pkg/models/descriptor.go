package models

// AgentDescriptor declares one agent's place in the pipeline: the context
// data it needs before starting and the agents whose terminal state gates it.
// Descriptors are registered once at orchestrator setup and must not be
// mutated after a run starts.
type AgentDescriptor struct {
	// Name is the unique agent name within the run.
	Name string `json:"name" yaml:"name"`
	// After lists predecessor agent names that must reach a terminal state
	// before this agent can become ready.
	After []string `json:"after,omitempty" yaml:"after,omitempty"`
	// Requires lists context path prefixes that must each hold at least one
	// entry before this agent can become ready.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	// TolerateFailures lists predecessors whose Failed or Skipped state
	// still counts as satisfied for readiness.
	TolerateFailures []string `json:"tolerate_failures,omitempty" yaml:"tolerate_failures,omitempty"`
	// Optional marks the agent as not required for overall run success.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Tolerates returns true if a failure of the named predecessor does not
// block this agent from becoming ready.
func (d AgentDescriptor) Tolerates(predecessor string) bool {
	for _, name := range d.TolerateFailures {
		if name == predecessor {
			return true
		}
	}
	return false
}

// AnalysisOptions is the options bag accepted by the submission interface.
type AnalysisOptions struct {
	// DeepAnalysis enables comprehensive per-file analysis.
	DeepAnalysis bool `json:"deep_analysis"`
	// IncludeDeps enables dependency vulnerability analysis.
	IncludeDeps bool `json:"include_deps"`
	// MaxConcurrency bounds how many agents run at once.
	// Values <= 1 force strictly sequential execution.
	MaxConcurrency int `json:"max_concurrency"`
}
