package orchestrator

import (
	"context"

	"github.com/ShayCichocki/skout/internal/broker"
	"github.com/ShayCichocki/skout/internal/contextstore"
)

// TaskContext is the narrow handle a task receives. Tasks read and write
// shared state only through the context store and the broker; no task holds
// a reference to another task's internal state.
type TaskContext struct {
	// Agent is the name the task runs under.
	Agent string
	// RunID identifies the run the task belongs to.
	RunID string
	// Store is the shared context manager.
	Store *contextstore.Store
	// Broker is the message bus.
	Broker *broker.Broker
}

// StatusPath returns the external observability path for an agent in a run,
// "<run>/analysis_status/<agent>". The value written there mirrors, but is
// distinct from, the orchestrator's internal RunState.
func StatusPath(runID, agent string) string {
	return runID + "/analysis_status/" + agent
}

// External status values written at StatusPath.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TaskFunc is the opaque unit of work behind one agent. The orchestrator
// inspects only the returned error: nil records the agent as Succeeded with
// the returned data, non-nil as Failed. A TaskFunc must honor ctx
// cancellation; it may block only while awaiting a context watch event or a
// broker message.
type TaskFunc func(ctx context.Context, tc *TaskContext) (any, error)
