package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/skout/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found between agents.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents a directed acyclic graph of agent dependencies.
// Agents are nodes, and edges represent "runs after" relationships.
type DependencyGraph struct {
	// nodes maps agent name to its descriptor.
	nodes map[string]models.AgentDescriptor
	// edges maps agent name to the names of agents it runs after.
	edges map[string][]string
	// order preserves registration order for deterministic traversal.
	order []string
}

// NewDependencyGraph creates a new empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]models.AgentDescriptor),
		edges: make(map[string][]string),
	}
}

// Build constructs the dependency graph from registered descriptors.
// Returns an error if a cycle is detected or a predecessor references an
// unknown agent. Either failure rejects the run before any task starts.
func (g *DependencyGraph) Build(descriptors []models.AgentDescriptor) error {
	// First pass: register all agents as nodes.
	for _, d := range descriptors {
		g.nodes[d.Name] = d
		g.edges[d.Name] = nil
		g.order = append(g.order, d.Name)
	}

	// Second pass: build edges from After fields.
	for _, d := range descriptors {
		for _, pred := range d.After {
			if _, exists := g.nodes[pred]; !exists {
				return fmt.Errorf("agent %s runs after unknown agent %s", d.Name, pred)
			}
			g.edges[d.Name] = append(g.edges[d.Name], pred)
		}
	}

	if g.HasCycle() {
		return ErrCycleDetected
	}

	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int)
	for name := range g.nodes {
		colors[name] = 0
	}

	var hasCycle bool
	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = 1 // Mark as in progress.

		for _, pred := range g.edges[name] {
			switch colors[pred] {
			case 1:
				// Found a back edge - cycle detected.
				return true
			case 0:
				if visit(pred) {
					return true
				}
			}
			// color == 2 means already processed, skip.
		}

		colors[name] = 2 // Mark as done.
		return false
	}

	for _, name := range g.order {
		if colors[name] == 0 {
			if visit(name) {
				hasCycle = true
				break
			}
		}
	}

	return hasCycle
}

// TopologicalSort returns agent names in an order where all predecessors
// come before the agents that run after them. The scheduling loop uses this
// as its deterministic evaluation order.
// Returns an error if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if g.HasCycle() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool)
	var result []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		// Visit all predecessors first.
		for _, pred := range g.edges[name] {
			visit(pred)
		}

		result = append(result, name)
	}

	for _, name := range g.order {
		visit(name)
	}

	return result, nil
}

// Predecessors returns the names of agents the given agent runs after.
func (g *DependencyGraph) Predecessors(name string) []string {
	return g.edges[name]
}

// Descriptor returns the descriptor for a given agent name.
func (g *DependencyGraph) Descriptor(name string) (models.AgentDescriptor, bool) {
	d, ok := g.nodes[name]
	return d, ok
}

// Size returns the number of agents in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}
