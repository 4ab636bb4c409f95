package orchestrator

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/skout/pkg/models"
)

func TestGraphBuildSimple(t *testing.T) {
	g := NewDependencyGraph()
	err := g.Build([]models.AgentDescriptor{
		{Name: "clone"},
		{Name: "scan", After: []string{"clone"}},
		{Name: "report", After: []string{"scan"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}
	preds := g.Predecessors("scan")
	if len(preds) != 1 || preds[0] != "clone" {
		t.Errorf("unexpected predecessors for scan: %v", preds)
	}
}

func TestGraphCycleDetection(t *testing.T) {
	g := NewDependencyGraph()
	err := g.Build([]models.AgentDescriptor{
		{Name: "a", After: []string{"b"}},
		{Name: "b", After: []string{"a"}},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestGraphSelfCycle(t *testing.T) {
	g := NewDependencyGraph()
	err := g.Build([]models.AgentDescriptor{
		{Name: "a", After: []string{"a"}},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected for self-dependency, got %v", err)
	}
}

func TestGraphUnknownPredecessor(t *testing.T) {
	g := NewDependencyGraph()
	err := g.Build([]models.AgentDescriptor{
		{Name: "scan", After: []string{"missing"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown predecessor")
	}
}

func TestGraphTopologicalSort(t *testing.T) {
	g := NewDependencyGraph()
	if err := g.Build([]models.AgentDescriptor{
		{Name: "report", After: []string{"scan", "review"}},
		{Name: "scan", After: []string{"clone"}},
		{Name: "review", After: []string{"clone"}},
		{Name: "clone"},
	}); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("sort failed: %v", err)
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	if pos["clone"] > pos["scan"] || pos["clone"] > pos["review"] {
		t.Errorf("clone must come before its dependents: %v", order)
	}
	if pos["scan"] > pos["report"] || pos["review"] > pos["report"] {
		t.Errorf("report must come last: %v", order)
	}
}
