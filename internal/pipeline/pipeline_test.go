package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/skout/internal/agents"
	"github.com/ShayCichocki/skout/internal/broker"
	"github.com/ShayCichocki/skout/internal/contextstore"
	"github.com/ShayCichocki/skout/internal/llm"
	"github.com/ShayCichocki/skout/internal/orchestrator"
	"github.com/ShayCichocki/skout/pkg/models"
)

type fixedProvider struct{ text string }

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{Text: p.text}, nil
}

func TestLoadPipelineYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	data := `name: custom
agents:
  - name: clone
    kind: github_cloner
  - name: report
    kind: reporter
    after: [clone]
    tolerate_failures: [clone]
    optional: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Name != "custom" || len(p.Agents) != 2 {
		t.Fatalf("unexpected pipeline %+v", p)
	}

	report := p.Agents[1]
	if report.Kind != agents.KindReporter {
		t.Errorf("Kind = %q, want reporter", report.Kind)
	}
	if len(report.After) != 1 || report.After[0] != "clone" {
		t.Errorf("After = %v, want [clone]", report.After)
	}
	if len(report.TolerateFailures) != 1 || !report.Optional {
		t.Errorf("tolerate_failures/optional not parsed: %+v", report)
	}
}

func TestLoadRejectsEmptyPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte("name: empty\nagents: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for pipeline with no agents")
	}
}

func TestValidateRejectsDuplicates(t *testing.T) {
	p := &Pipeline{
		Name: "dup",
		Agents: []AgentSpec{
			{Name: "a", Kind: agents.KindReporter},
			{Name: "a", Kind: agents.KindReporter},
		},
	}
	if err := p.Validate(); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestRegisterUnknownKind(t *testing.T) {
	store := contextstore.New()
	defer store.Close()
	bus := broker.New()
	defer bus.Close()

	o := orchestrator.New(store, bus)
	p := &Pipeline{
		Name:   "bad",
		Agents: []AgentSpec{{Name: "x", Kind: "no_such_agent"}},
	}
	if err := p.Register(o, agents.Deps{}, "run-1"); err == nil {
		t.Fatal("expected error for unknown agent kind")
	}
}

func TestDefaultPipelineRunsEndToEnd(t *testing.T) {
	store := contextstore.New()
	defer store.Close()
	bus := broker.New()
	defer bus.Close()

	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "main.py"), []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deps := agents.Deps{
		Provider: &fixedProvider{text: "RISK_ASSESSMENT:\nLOW\n\nMAINTAINABILITY_SCORE: 8"},
		RepoURL:  repo,
		WorkDir:  t.TempDir(),
	}

	o := orchestrator.New(store, bus)
	if err := Default().Register(o, deps, "run-1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := o.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("run should succeed, got %+v", result)
	}

	for _, name := range []string{"clone", "security", "review", "report"} {
		if result.Agents[name].State != models.RunStateSucceeded {
			t.Errorf("agent %s state = %s, want succeeded", name, result.Agents[name].State)
		}
	}

	if _, ok := store.GetValue("run-1/report").(agents.Report); !ok {
		t.Error("report not written to context")
	}
}
