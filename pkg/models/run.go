package models

import "time"

// RunState represents the orchestrator's view of an agent within a run.
type RunState string

const (
	// RunStatePending indicates the agent is waiting on dependencies.
	RunStatePending RunState = "pending"
	// RunStateReady indicates the agent's dependencies are satisfied and it
	// is queued for dispatch.
	RunStateReady RunState = "ready"
	// RunStateRunning indicates the agent's task is executing.
	RunStateRunning RunState = "running"
	// RunStateSucceeded indicates the task completed without error.
	RunStateSucceeded RunState = "succeeded"
	// RunStateFailed indicates the task returned or raised an error.
	RunStateFailed RunState = "failed"
	// RunStateSkipped indicates the agent was never dispatched because a
	// predecessor failed or the run was cancelled.
	RunStateSkipped RunState = "skipped"
)

// Valid returns true if the state is a known value.
func (s RunState) Valid() bool {
	switch s {
	case RunStatePending, RunStateReady, RunStateRunning,
		RunStateSucceeded, RunStateFailed, RunStateSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is one an agent can finish a run in.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateSucceeded, RunStateFailed, RunStateSkipped:
		return true
	default:
		return false
	}
}

// AgentResult records the terminal outcome of a single agent within a run.
type AgentResult struct {
	// Agent is the agent's registered name.
	Agent string `json:"agent"`
	// State is the terminal state the agent reached.
	State RunState `json:"state"`
	// Data is the opaque payload returned by a succeeded task.
	Data any `json:"data,omitempty"`
	// Error is the failure or skip reason, empty on success.
	Error string `json:"error,omitempty"`
	// StartedAt is when the task was dispatched, zero if never dispatched.
	StartedAt time.Time `json:"started_at,omitempty"`
	// FinishedAt is when the terminal state was recorded.
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// RunResult is the aggregated outcome of a completed run.
type RunResult struct {
	// RunID is the unique identifier for the run.
	RunID string `json:"run_id"`
	// Success is true only if every non-optional agent succeeded.
	Success bool `json:"success"`
	// Agents maps agent name to its terminal result.
	Agents map[string]AgentResult `json:"agents"`
	// Reason carries the run-level failure reason (e.g. cancellation).
	Reason string `json:"reason,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached a terminal state.
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded returns the names of agents that ended in RunStateSucceeded.
func (r *RunResult) Succeeded() []string { return r.agentsIn(RunStateSucceeded) }

// Failed returns the names of agents that ended in RunStateFailed.
func (r *RunResult) Failed() []string { return r.agentsIn(RunStateFailed) }

// Skipped returns the names of agents that ended in RunStateSkipped.
func (r *RunResult) Skipped() []string { return r.agentsIn(RunStateSkipped) }

func (r *RunResult) agentsIn(state RunState) []string {
	var names []string
	for name, res := range r.Agents {
		if res.State == state {
			names = append(names, name)
		}
	}
	return names
}
