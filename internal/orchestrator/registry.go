package orchestrator

import (
	"fmt"
	"sync"

	"github.com/ShayCichocki/skout/pkg/models"
)

// AgentRegistry holds the registered agents for a run: descriptor plus task.
// Registration happens once at orchestrator setup; the registry is frozen
// when a run starts.
type AgentRegistry struct {
	// descriptors maps agent name to its declared dependencies.
	descriptors map[string]models.AgentDescriptor
	// tasks maps agent name to its unit of work.
	tasks map[string]TaskFunc
	// order preserves registration order.
	order []string
	// mu protects all fields.
	mu sync.RWMutex
}

// NewAgentRegistry creates a new AgentRegistry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		descriptors: make(map[string]models.AgentDescriptor),
		tasks:       make(map[string]TaskFunc),
	}
}

// Register adds an agent to the registry.
// Returns an error on a duplicate or empty name, or a nil task.
func (r *AgentRegistry) Register(d models.AgentDescriptor, task TaskFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.Name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if task == nil {
		return fmt.Errorf("agent %s has no task", d.Name)
	}
	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("agent %s already registered", d.Name)
	}

	r.descriptors[d.Name] = d
	r.tasks[d.Name] = task
	r.order = append(r.order, d.Name)
	return nil
}

// Descriptors returns all registered descriptors in registration order.
func (r *AgentRegistry) Descriptors() []models.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AgentDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Task returns the task for a given agent name.
// Returns nil if the agent is not registered.
func (r *AgentRegistry) Task(name string) TaskFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[name]
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
