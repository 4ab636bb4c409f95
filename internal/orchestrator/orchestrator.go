package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/skout/internal/broker"
	"github.com/ShayCichocki/skout/internal/contextstore"
	"github.com/ShayCichocki/skout/pkg/models"
)

// Orchestrator drives one analysis run over a registry of agents. Create it
// with New, register agents, then call Run. The RunState table is owned by
// the scheduling loop inside Run and is never written from task goroutines.
type Orchestrator struct {
	store    *contextstore.Store
	broker   *broker.Broker
	registry *AgentRegistry
	emitter  *EventEmitter
	opts     orchestratorOptions

	// mu guards the single-run-at-a-time check.
	mu      sync.Mutex
	running bool
}

// New creates an Orchestrator bound to a context store and broker.
func New(store *contextstore.Store, bus *broker.Broker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		broker:   bus,
		registry: NewAgentRegistry(),
		opts: orchestratorOptions{
			maxConcurrency: defaultMaxConcurrency,
			eventBuffer:    defaultEventBuffer,
		},
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	if o.opts.eventBuffer <= 0 {
		o.opts.eventBuffer = defaultEventBuffer
	}
	o.emitter = NewEventEmitter(o.opts.eventBuffer)
	if o.opts.logger != nil {
		setPackageLogger(o.opts.logger)
	}
	return o
}

// Register adds an agent to the orchestrator's registry. Must be called
// before Run; descriptors are immutable once a run starts.
func (o *Orchestrator) Register(d models.AgentDescriptor, task TaskFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return fmt.Errorf("cannot register agent %s: run in progress", d.Name)
	}
	return o.registry.Register(d, task)
}

// Events returns the channel for receiving orchestrator lifecycle events.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// DroppedEventCount returns the number of events dropped by the emitter.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// maxConcurrency returns the effective concurrency bound, never below 1.
func (o *Orchestrator) maxConcurrency() int64 {
	if o.opts.maxConcurrency <= 1 {
		return 1
	}
	return int64(o.opts.maxConcurrency)
}

// Run executes all registered agents for the given run ID and returns the
// aggregated result. A non-nil error is returned only for setup problems
// (no agents, unknown predecessor, dependency cycle), detected before any
// task starts. Task failures never surface as an error here: they are
// recorded in the RunResult. Cancelling ctx marks all non-terminal agents
// Skipped and fails the run with a cancellation reason.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*models.RunResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, fmt.Errorf("a run is already in progress")
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	descriptors := o.registry.Descriptors()
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("no agents registered")
	}

	graph := NewDependencyGraph()
	if err := graph.Build(descriptors); err != nil {
		return nil, fmt.Errorf("invalid agent graph: %w", err)
	}
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("invalid agent graph: %w", err)
	}

	runs := make(map[string]*agentRun, len(descriptors))
	for _, d := range descriptors {
		runs[d.Name] = &agentRun{
			desc:  d,
			task:  o.registry.Task(d.Name),
			state: models.RunStatePending,
		}
	}

	debugLog("[orchestrator] run %s starting with %d agents: %v", runID, len(runs), order)
	o.emitter.Emit(Event{
		Type:      EventRunStarted,
		RunID:     runID,
		Message:   fmt.Sprintf("Run started with %d agents", len(runs)),
		Timestamp: time.Now(),
	})

	result := o.runLoop(ctx, runID, graph, order, runs)

	o.emitter.Emit(Event{
		Type:      EventRunCompleted,
		RunID:     runID,
		Message:   fmt.Sprintf("Run completed, success=%v", result.Success),
		Timestamp: time.Now(),
	})
	return result, nil
}
