package orchestrator

import (
	"time"

	"github.com/ShayCichocki/skout/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has begun executing.
	EventRunStarted EventType = "run_started"
	// EventAgentQueued indicates an agent became ready and was queued.
	EventAgentQueued EventType = "agent_queued"
	// EventAgentStarted indicates an agent's task was dispatched.
	EventAgentStarted EventType = "agent_started"
	// EventAgentSucceeded indicates an agent's task completed successfully.
	EventAgentSucceeded EventType = "agent_succeeded"
	// EventAgentFailed indicates an agent's task returned an error.
	EventAgentFailed EventType = "agent_failed"
	// EventAgentSkipped indicates an agent was skipped because a
	// predecessor failed or the run was cancelled.
	EventAgentSkipped EventType = "agent_skipped"
	// EventRunCompleted indicates the run reached a terminal state.
	EventRunCompleted EventType = "run_completed"
)

// Event represents an event emitted by the orchestrator.
// These events are consumed by the CLI to report progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the identifier of the run.
	RunID string
	// Agent is the name of the related agent, if applicable.
	Agent string
	// State is the agent's state at the time of the event.
	State models.RunState
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
