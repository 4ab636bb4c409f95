// Package pipeline loads audit pipeline definitions and wires them into
// an orchestrator registry. A pipeline names the agents to run, their
// ordering constraints, and the context paths they wait on. Definitions
// come from YAML files or from the built-in audit pipeline.
package pipeline

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/skout/internal/agents"
	"github.com/ShayCichocki/skout/internal/orchestrator"
	"github.com/ShayCichocki/skout/pkg/models"
)

// AgentSpec describes one agent in a pipeline definition.
type AgentSpec struct {
	// Name is the agent's unique name within the run.
	Name string `yaml:"name"`
	// Kind selects the implementation from the agent catalog.
	Kind string `yaml:"kind"`
	// After lists agent names that must finish first.
	After []string `yaml:"after,omitempty"`
	// Requires lists context paths, relative to the run, that must
	// exist before the agent starts.
	Requires []string `yaml:"requires,omitempty"`
	// TolerateFailures lists predecessors whose failure or skip does
	// not block this agent.
	TolerateFailures []string `yaml:"tolerate_failures,omitempty"`
	// Optional agents do not affect overall run success.
	Optional bool `yaml:"optional,omitempty"`
}

// Pipeline is a named set of agents.
type Pipeline struct {
	Name   string      `yaml:"name"`
	Agents []AgentSpec `yaml:"agents"`
}

// Load reads a pipeline definition from a YAML file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks the definition for structural problems that would
// otherwise surface later as registration errors.
func (p *Pipeline) Validate() error {
	if len(p.Agents) == 0 {
		return fmt.Errorf("pipeline %q has no agents", p.Name)
	}

	seen := map[string]bool{}
	for _, spec := range p.Agents {
		if spec.Name == "" {
			return fmt.Errorf("pipeline %q has an agent with no name", p.Name)
		}
		if spec.Kind == "" {
			return fmt.Errorf("agent %s has no kind", spec.Name)
		}
		if seen[spec.Name] {
			return fmt.Errorf("duplicate agent name: %s", spec.Name)
		}
		seen[spec.Name] = true
	}

	return nil
}

// Register resolves each agent spec against the catalog and registers it
// with the orchestrator. Requires paths are anchored under the run's
// context subtree.
func (p *Pipeline) Register(o *orchestrator.Orchestrator, deps agents.Deps, runID string) error {
	if err := p.Validate(); err != nil {
		return err
	}

	for _, spec := range p.Agents {
		task, err := agents.Task(deps, spec.Kind)
		if err != nil {
			return fmt.Errorf("agent %s: %w", spec.Name, err)
		}

		requires := make([]string, 0, len(spec.Requires))
		for _, path := range spec.Requires {
			requires = append(requires, runID+"/"+path)
		}

		desc := models.AgentDescriptor{
			Name:             spec.Name,
			After:            spec.After,
			Requires:         requires,
			TolerateFailures: spec.TolerateFailures,
			Optional:         spec.Optional,
		}
		if err := o.Register(desc, task); err != nil {
			return fmt.Errorf("register agent %s: %w", spec.Name, err)
		}
	}

	return nil
}

// Default returns the built-in audit pipeline: clone the repository,
// run security analysis and code review in parallel, then produce the
// report even if an analysis stage failed.
func Default() *Pipeline {
	return &Pipeline{
		Name: "audit",
		Agents: []AgentSpec{
			{
				Name: "clone",
				Kind: agents.KindGitHubCloner,
			},
			{
				Name:     "security",
				Kind:     agents.KindSecurityAnalyst,
				After:    []string{"clone"},
				Requires: []string{"repo/path"},
			},
			{
				Name:     "review",
				Kind:     agents.KindCodeReviewer,
				After:    []string{"clone"},
				Requires: []string{"repo/path"},
			},
			{
				Name:             "report",
				Kind:             agents.KindReporter,
				After:            []string{"security", "review"},
				TolerateFailures: []string{"security", "review"},
			},
		},
	}
}
