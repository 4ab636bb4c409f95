package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/skout/internal/broker"
	"github.com/ShayCichocki/skout/internal/contextstore"
	"github.com/ShayCichocki/skout/pkg/models"
)

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *contextstore.Store, *broker.Broker) {
	t.Helper()
	store := contextstore.New()
	bus := broker.New()
	t.Cleanup(func() {
		store.Close()
		bus.Close()
	})
	return New(store, bus, opts...), store, bus
}

// succeedTask returns a task that records its execution and succeeds.
func succeedTask(mu *sync.Mutex, log *[]string) TaskFunc {
	return func(ctx context.Context, tc *TaskContext) (any, error) {
		mu.Lock()
		*log = append(*log, tc.Agent)
		mu.Unlock()
		return tc.Agent + " done", nil
	}
}

func TestRunRejectsEmptyRegistry(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	if _, err := o.Run(context.Background(), "run-1"); err == nil {
		t.Fatal("expected setup error for empty registry")
	}
}

func TestRunRejectsCycleBeforeAnyTaskStarts(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	var started atomic.Bool
	task := func(ctx context.Context, tc *TaskContext) (any, error) {
		started.Store(true)
		return nil, nil
	}

	mustRegister(t, o, models.AgentDescriptor{Name: "a", After: []string{"b"}}, task)
	mustRegister(t, o, models.AgentDescriptor{Name: "b", After: []string{"a"}}, task)

	_, err := o.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if started.Load() {
		t.Error("no task should start on a cyclic graph")
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	task := func(ctx context.Context, tc *TaskContext) (any, error) { return nil, nil }

	mustRegister(t, o, models.AgentDescriptor{Name: "clone"}, task)
	if err := o.Register(models.AgentDescriptor{Name: "clone"}, task); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestPipelineHappyPath(t *testing.T) {
	o, store, _ := newTestOrchestrator(t)

	var mu sync.Mutex
	var execOrder []string

	clone := func(ctx context.Context, tc *TaskContext) (any, error) {
		mu.Lock()
		execOrder = append(execOrder, "clone")
		mu.Unlock()
		tc.Store.Set("repo/files", []string{"main.go", "auth.go"}, tc.Agent)
		return "cloned", nil
	}

	mustRegister(t, o, models.AgentDescriptor{Name: "clone"}, clone)
	mustRegister(t, o, models.AgentDescriptor{
		Name:     "scan",
		After:    []string{"clone"},
		Requires: []string{"repo/files"},
	}, succeedTask(&mu, &execOrder))
	mustRegister(t, o, models.AgentDescriptor{
		Name:  "report",
		After: []string{"scan"},
	}, succeedTask(&mu, &execOrder))

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got failure: %+v", result)
	}
	for _, name := range []string{"clone", "scan", "report"} {
		if result.Agents[name].State != models.RunStateSucceeded {
			t.Errorf("agent %s: expected succeeded, got %s", name, result.Agents[name].State)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(execOrder) != 3 || execOrder[0] != "clone" || execOrder[1] != "scan" || execOrder[2] != "report" {
		t.Errorf("execution order violated dependencies: %v", execOrder)
	}

	// External observability writes.
	for _, name := range []string{"clone", "scan", "report"} {
		if v := store.GetValue(StatusPath("run-1", name)); v != StatusCompleted {
			t.Errorf("agent %s: expected status completed, got %v", name, v)
		}
	}
}

func TestAllStatesTerminalAfterRun(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	mustRegister(t, o, models.AgentDescriptor{Name: "ok"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "bad"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, errors.New("boom")
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "dependent", After: []string{"bad"}}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for name, agent := range result.Agents {
		if !agent.State.Terminal() {
			t.Errorf("agent %s left in non-terminal state %s", name, agent.State)
		}
	}
}

func TestFailurePropagatesAsSkip(t *testing.T) {
	o, store, _ := newTestOrchestrator(t)

	clone := func(ctx context.Context, tc *TaskContext) (any, error) {
		tc.Store.Set("repo/files", []string{"main.go"}, tc.Agent)
		return nil, nil
	}
	scan := func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, errors.New("scanner exploded")
	}
	report := func(ctx context.Context, tc *TaskContext) (any, error) {
		t.Error("report must not run after scan failure")
		return nil, nil
	}

	mustRegister(t, o, models.AgentDescriptor{Name: "clone"}, clone)
	mustRegister(t, o, models.AgentDescriptor{Name: "scan", After: []string{"clone"}}, scan)
	mustRegister(t, o, models.AgentDescriptor{Name: "report", After: []string{"scan"}}, report)

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Success {
		t.Error("expected failed run")
	}
	if result.Agents["clone"].State != models.RunStateSucceeded {
		t.Errorf("clone: expected succeeded, got %s", result.Agents["clone"].State)
	}
	if result.Agents["scan"].State != models.RunStateFailed {
		t.Errorf("scan: expected failed, got %s", result.Agents["scan"].State)
	}
	if result.Agents["scan"].Error != "scanner exploded" {
		t.Errorf("scan: expected recorded error, got %q", result.Agents["scan"].Error)
	}
	if result.Agents["report"].State != models.RunStateSkipped {
		t.Errorf("report: expected skipped, got %s", result.Agents["report"].State)
	}
	if result.Agents["report"].Error == "" {
		t.Error("report: expected a derived skip reason")
	}

	// Partial results stay queryable after a failed run.
	if _, ok := store.Get("repo/files"); !ok {
		t.Error("partial context results lost after failed run")
	}
	if v := store.GetValue(StatusPath("run-1", "scan")); v != StatusFailed {
		t.Errorf("expected external status failed for scan, got %v", v)
	}
}

func TestSkipCascades(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	mustRegister(t, o, models.AgentDescriptor{Name: "a"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, errors.New("fail")
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "b", After: []string{"a"}}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "c", After: []string{"b"}}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Agents["b"].State != models.RunStateSkipped {
		t.Errorf("b: expected skipped, got %s", result.Agents["b"].State)
	}
	if result.Agents["c"].State != models.RunStateSkipped {
		t.Errorf("c: expected skip to cascade, got %s", result.Agents["c"].State)
	}
}

func TestFailureTolerantDependency(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	mustRegister(t, o, models.AgentDescriptor{Name: "scan"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, errors.New("scan failed")
	})
	mustRegister(t, o, models.AgentDescriptor{
		Name:             "report",
		After:            []string{"scan"},
		TolerateFailures: []string{"scan"},
	}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return "partial report", nil
	})

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Agents["report"].State != models.RunStateSucceeded {
		t.Errorf("tolerant report should run, got %s", result.Agents["report"].State)
	}
	if result.Success {
		t.Error("run still fails overall because scan is required")
	}
}

func TestOptionalAgentFailureDoesNotFailRun(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	mustRegister(t, o, models.AgentDescriptor{Name: "main"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "extra", Optional: true}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, errors.New("optional failure")
	})

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Success {
		t.Error("optional agent failure must not fail the run")
	}
}

func TestConcurrencyBound(t *testing.T) {
	const bound = 2
	o, _, _ := newTestOrchestrator(t, WithMaxConcurrency(bound))

	var current, peak atomic.Int64
	task := func(ctx context.Context, tc *TaskContext) (any, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	}

	for i := 0; i < 6; i++ {
		mustRegister(t, o, models.AgentDescriptor{Name: fmt.Sprintf("agent-%d", i)}, task)
	}

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success: %+v", result)
	}
	if peak.Load() > bound {
		t.Errorf("concurrency bound violated: peak %d > %d", peak.Load(), bound)
	}
}

func TestSequentialExecution(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, WithMaxConcurrency(1))

	var current atomic.Int64
	task := func(ctx context.Context, tc *TaskContext) (any, error) {
		if current.Add(1) > 1 {
			t.Error("two tasks running despite sequential mode")
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	}

	for i := 0; i < 4; i++ {
		mustRegister(t, o, models.AgentDescriptor{Name: fmt.Sprintf("agent-%d", i)}, task)
	}

	if _, err := o.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestPanicRecordedAsFailure(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	mustRegister(t, o, models.AgentDescriptor{Name: "panicky"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		panic("task went sideways")
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "sibling"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("panic escaped the orchestrator: %v", err)
	}
	if result.Agents["panicky"].State != models.RunStateFailed {
		t.Errorf("expected panic recorded as failure, got %s", result.Agents["panicky"].State)
	}
	if result.Agents["sibling"].State != models.RunStateSucceeded {
		t.Errorf("sibling must be unaffected, got %s", result.Agents["sibling"].State)
	}
}

func TestContextRequirementUnblocksViaWatch(t *testing.T) {
	o, store, _ := newTestOrchestrator(t)

	mustRegister(t, o, models.AgentDescriptor{
		Name:     "waiter",
		Requires: []string{"external/input"},
	}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return tc.Store.GetValue("external/input"), nil
	})

	// Write arrives from outside the run after it has started.
	go func() {
		time.Sleep(50 * time.Millisecond)
		store.Set("external/input", "payload", "collaborator")
	}()

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Agents["waiter"].State != models.RunStateSucceeded {
		t.Errorf("expected waiter to unblock on context write, got %s", result.Agents["waiter"].State)
	}
	if result.Agents["waiter"].Data != "payload" {
		t.Errorf("expected waiter to read the written value, got %v", result.Agents["waiter"].Data)
	}
}

func TestCancellationSkipsNonTerminal(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, WithMaxConcurrency(1))

	blocked := make(chan struct{})
	mustRegister(t, o, models.AgentDescriptor{Name: "fast"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return "done", nil
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "slow", After: []string{"fast"}}, func(ctx context.Context, tc *TaskContext) (any, error) {
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	mustRegister(t, o, models.AgentDescriptor{Name: "never", After: []string{"slow"}}, func(ctx context.Context, tc *TaskContext) (any, error) {
		t.Error("agent after cancellation point must not run")
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-blocked
		cancel()
	}()

	result, err := o.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("run returned error instead of result: %v", err)
	}

	if result.Success {
		t.Error("cancelled run must fail")
	}
	if result.Reason == "" {
		t.Error("expected cancellation reason on result")
	}
	if result.Agents["fast"].State != models.RunStateSucceeded {
		t.Errorf("fast keeps its recorded result, got %s", result.Agents["fast"].State)
	}
	if result.Agents["slow"].State != models.RunStateSkipped {
		t.Errorf("in-flight slow becomes skipped, got %s", result.Agents["slow"].State)
	}
	if result.Agents["never"].State != models.RunStateSkipped {
		t.Errorf("pending never becomes skipped, got %s", result.Agents["never"].State)
	}
}

func TestLifecycleBroadcastPublished(t *testing.T) {
	o, _, bus := newTestOrchestrator(t)

	sub := bus.Subscribe(models.AgentStatusTopic("clone"))
	defer sub.Cancel()

	mustRegister(t, o, models.AgentDescriptor{Name: "clone"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})

	if _, err := o.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		payload, ok := msg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected payload type %T", msg.Payload)
		}
		if payload["state"] != string(models.RunStateSucceeded) {
			t.Errorf("expected succeeded broadcast, got %v", payload["state"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no lifecycle broadcast received")
	}
}

func TestRegisterDuringRunRejected(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	started := make(chan struct{})
	release := make(chan struct{})
	mustRegister(t, o, models.AgentDescriptor{Name: "long"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		close(started)
		<-release
		return nil, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(context.Background(), "run-1")
	}()

	<-started
	err := o.Register(models.AgentDescriptor{Name: "late"}, func(ctx context.Context, tc *TaskContext) (any, error) {
		return nil, nil
	})
	close(release)
	<-done

	if err == nil {
		t.Error("registration during a run must be rejected")
	}
}

func mustRegister(t *testing.T, o *Orchestrator, d models.AgentDescriptor, task TaskFunc) {
	t.Helper()
	if err := o.Register(d, task); err != nil {
		t.Fatalf("register %s: %v", d.Name, err)
	}
}
