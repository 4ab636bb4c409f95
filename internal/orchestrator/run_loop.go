package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/skout/internal/contextstore"
	"github.com/ShayCichocki/skout/pkg/models"
)

// agentRun is the per-agent entry in the scheduling loop's state table.
// Only the scheduling loop reads or writes it after the run starts.
type agentRun struct {
	desc   models.AgentDescriptor
	task   TaskFunc
	state  models.RunState
	result models.AgentResult
}

// completion carries a finished task's outcome back to the scheduling loop.
type completion struct {
	agent string
	data  any
	err   error
}

// runLoop is the single-threaded scheduling loop. Tasks run in parallel but
// every state transition happens here, serialized.
func (o *Orchestrator) runLoop(ctx context.Context, runID string, graph *DependencyGraph, order []string, runs map[string]*agentRun) *models.RunResult {
	startedAt := time.Now()

	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	sem := semaphore.NewWeighted(o.maxConcurrency())
	completionCh := make(chan completion, len(runs))

	// pokes coalesces context watch notifications into "re-evaluate now".
	pokes := make(chan struct{}, 1)
	watches := o.watchRequirements(runs, pokes)
	defer func() {
		for _, w := range watches {
			w.Cancel()
		}
	}()

	// readyQueue holds Ready agents in the order they became ready.
	var readyQueue []string
	inflight := 0

	// evaluate walks still-Pending agents in topological order, so that a
	// skip cascade resolves in a single pass.
	evaluate := func() {
		for _, name := range order {
			run := runs[name]
			if run.state != models.RunStatePending {
				continue
			}

			if pred, blocked := o.blockedBy(graph, runs, run.desc); blocked {
				reason := fmt.Sprintf("predecessor %s did not succeed", pred)
				o.recordTerminal(runID, run, models.RunStateSkipped, nil, reason)
				continue
			}

			if o.ready(graph, runs, run.desc) {
				run.state = models.RunStateReady
				readyQueue = append(readyQueue, name)
				debugLog("[orchestrator] agent %s ready", name)
				o.emitter.Emit(Event{
					Type:      EventAgentQueued,
					RunID:     runID,
					Agent:     name,
					State:     models.RunStateReady,
					Timestamp: time.Now(),
				})
			}
		}
	}

	// dispatch starts queued agents while the concurrency bound allows.
	dispatch := func() {
		for len(readyQueue) > 0 && sem.TryAcquire(1) {
			name := readyQueue[0]
			readyQueue = readyQueue[1:]
			run := runs[name]

			run.state = models.RunStateRunning
			run.result.StartedAt = time.Now()
			inflight++
			o.store.Set(StatusPath(runID, name), StatusInProgress, "orchestrator")
			debugLog("[orchestrator] dispatching agent %s (%d inflight)", name, inflight)
			o.emitter.Emit(Event{
				Type:      EventAgentStarted,
				RunID:     runID,
				Agent:     name,
				State:     models.RunStateRunning,
				Timestamp: time.Now(),
			})

			go o.execute(taskCtx, runID, name, run.task, completionCh)
		}
	}

	evaluate()
	dispatch()

	for !allTerminal(runs) {
		select {
		case c := <-completionCh:
			inflight--
			sem.Release(1)
			run := runs[c.agent]
			if c.err != nil {
				o.store.Set(StatusPath(runID, c.agent), StatusFailed, "orchestrator")
				o.recordTerminal(runID, run, models.RunStateFailed, nil, c.err.Error())
			} else {
				o.store.Set(StatusPath(runID, c.agent), StatusCompleted, "orchestrator")
				o.recordTerminal(runID, run, models.RunStateSucceeded, c.data, "")
			}
			evaluate()
			dispatch()

		case <-pokes:
			evaluate()
			dispatch()

		case <-ctx.Done():
			return o.finalizeCancelled(ctx, runID, runs, cancelTasks, completionCh, inflight, startedAt)
		}
	}

	return o.buildResult(runID, runs, "", startedAt)
}

// blockedBy returns the name of a predecessor that terminally blocks the
// agent: one in Failed or Skipped state that the agent does not tolerate.
func (o *Orchestrator) blockedBy(graph *DependencyGraph, runs map[string]*agentRun, d models.AgentDescriptor) (string, bool) {
	for _, pred := range graph.Predecessors(d.Name) {
		predRun := runs[pred]
		switch predRun.state {
		case models.RunStateFailed, models.RunStateSkipped:
			if !d.Tolerates(pred) {
				return pred, true
			}
		}
	}
	return "", false
}

// ready reports whether every predecessor reached a satisfying terminal
// state and every required context prefix holds at least one entry.
func (o *Orchestrator) ready(graph *DependencyGraph, runs map[string]*agentRun, d models.AgentDescriptor) bool {
	for _, pred := range graph.Predecessors(d.Name) {
		predRun := runs[pred]
		switch predRun.state {
		case models.RunStateSucceeded:
		case models.RunStateFailed, models.RunStateSkipped:
			if !d.Tolerates(pred) {
				return false
			}
		default:
			return false
		}
	}
	for _, prefix := range d.Requires {
		if len(o.store.GetSubtree(prefix)) == 0 {
			return false
		}
	}
	return true
}

// recordTerminal transitions an agent to a terminal state, publishes the
// lifecycle broadcast, and emits the matching event.
func (o *Orchestrator) recordTerminal(runID string, run *agentRun, state models.RunState, data any, errMsg string) {
	run.state = state
	run.result = models.AgentResult{
		Agent:      run.desc.Name,
		State:      state,
		Data:       data,
		Error:      errMsg,
		StartedAt:  run.result.StartedAt,
		FinishedAt: time.Now(),
	}
	debugLog("[orchestrator] agent %s -> %s (%s)", run.desc.Name, state, errMsg)

	// Lifecycle broadcast for any agent reacting to peer terminal states.
	// Best effort: a closed broker is not a scheduling failure.
	_ = o.broker.Broadcast(models.AgentStatusTopic(run.desc.Name), "orchestrator", map[string]any{
		"run_id": runID,
		"agent":  run.desc.Name,
		"state":  string(state),
		"error":  errMsg,
	})

	eventType := EventAgentSucceeded
	var eventErr error
	switch state {
	case models.RunStateFailed:
		eventType = EventAgentFailed
		eventErr = fmt.Errorf("%s", errMsg)
	case models.RunStateSkipped:
		eventType = EventAgentSkipped
	}
	o.emitter.Emit(Event{
		Type:      eventType,
		RunID:     runID,
		Agent:     run.desc.Name,
		State:     state,
		Message:   errMsg,
		Err:       eventErr,
		Timestamp: time.Now(),
	})
}

// execute runs one task on its own goroutine. A panic is caught at this
// boundary and recorded as the agent's failure; it never crashes the loop.
func (o *Orchestrator) execute(ctx context.Context, runID, name string, task TaskFunc, completionCh chan<- completion) {
	if o.opts.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.taskTimeout)
		defer cancel()
	}

	var data any
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		data, err = task(ctx, &TaskContext{
			Agent:  name,
			RunID:  runID,
			Store:  o.store,
			Broker: o.broker,
		})
	}()

	// completionCh is sized for every agent, so this never blocks.
	completionCh <- completion{agent: name, data: data, err: err}
}

// finalizeCancelled drains in-flight tasks after the run context is
// cancelled and marks every non-terminal agent Skipped. Agents that already
// reached Succeeded or Failed keep their recorded result.
func (o *Orchestrator) finalizeCancelled(ctx context.Context, runID string, runs map[string]*agentRun, cancelTasks context.CancelFunc, completionCh chan completion, inflight int, startedAt time.Time) *models.RunResult {
	debugLog("[orchestrator] run %s cancelled, draining %d inflight tasks", runID, inflight)
	cancelTasks()

	// Tasks honor context cancellation; wait for each to return so no task
	// goroutine outlives the run.
	for inflight > 0 {
		<-completionCh
		inflight--
	}

	reason := "run cancelled"
	if err := context.Cause(ctx); err != nil {
		reason = fmt.Sprintf("run cancelled: %v", err)
	}

	for _, name := range sortedNames(runs) {
		run := runs[name]
		if !run.state.Terminal() {
			o.recordTerminal(runID, run, models.RunStateSkipped, nil, reason)
		}
	}
	return o.buildResult(runID, runs, reason, startedAt)
}

// buildResult aggregates the final run outcome. The run succeeds only if
// every non-optional agent succeeded.
func (o *Orchestrator) buildResult(runID string, runs map[string]*agentRun, reason string, startedAt time.Time) *models.RunResult {
	result := &models.RunResult{
		RunID:      runID,
		Success:    reason == "",
		Agents:     make(map[string]models.AgentResult, len(runs)),
		Reason:     reason,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	for name, run := range runs {
		result.Agents[name] = run.result
		if run.state != models.RunStateSucceeded && !run.desc.Optional {
			result.Success = false
		}
	}
	return result
}

// watchRequirements registers one watch per unique required prefix and
// forwards every update as a coalesced poke to the scheduling loop.
func (o *Orchestrator) watchRequirements(runs map[string]*agentRun, pokes chan<- struct{}) []*contextstore.Watch {
	prefixes := make(map[string]bool)
	for _, run := range runs {
		for _, prefix := range run.desc.Requires {
			prefixes[prefix] = true
		}
	}

	var watches []*contextstore.Watch
	for prefix := range prefixes {
		w := o.store.Watch(prefix)
		watches = append(watches, w)
		go func(w *contextstore.Watch) {
			for range w.Updates() {
				select {
				case pokes <- struct{}{}:
				default:
				}
			}
		}(w)
	}
	return watches
}

func allTerminal(runs map[string]*agentRun) bool {
	for _, run := range runs {
		if !run.state.Terminal() {
			return false
		}
	}
	return true
}

func sortedNames(runs map[string]*agentRun) []string {
	names := make([]string, 0, len(runs))
	for name := range runs {
		names = append(names, name)
	}
	// Deterministic skip order for logs and events.
	sort.Strings(names)
	return names
}
