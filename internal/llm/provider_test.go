package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubProvider is a scriptable Provider for chain tests.
type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req Request) (Response, error) {
	s.calls++
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Text: s.text}, nil
}

func TestChainEmptyReturnsError(t *testing.T) {
	chain := NewChain()
	_, err := chain.Complete(context.Background(), Request{Prompt: "hello"})
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestChainFirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", text: "from first"}
	second := &stubProvider{name: "second", text: "from second"}
	chain := NewChain(first, second)

	resp, err := chain.Complete(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "from first" {
		t.Errorf("expected response from first provider, got %q", resp.Text)
	}
	if second.calls != 0 {
		t.Errorf("second provider should not be called, got %d calls", second.calls)
	}
}

func TestChainFallsBackOnError(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("rate limited")}
	second := &stubProvider{name: "second", text: "from second"}
	chain := NewChain(first, second)

	resp, err := chain.Complete(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "from second" {
		t.Errorf("expected fallback response, got %q", resp.Text)
	}
	if first.calls != 1 {
		t.Errorf("first provider should be tried once, got %d calls", first.calls)
	}
}

func TestChainAllProvidersFail(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("rate limited")}
	second := &stubProvider{name: "second", err: errors.New("unavailable")}
	chain := NewChain(first, second)

	_, err := chain.Complete(context.Background(), Request{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	if !strings.Contains(err.Error(), "rate limited") || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("error should mention each provider failure, got %v", err)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("rate limited")}
	second := &stubProvider{name: "second", text: "from second"}
	chain := NewChain(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Complete(ctx, Request{Prompt: "hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if first.calls != 0 || second.calls != 0 {
		t.Errorf("no provider should be called after cancellation, got %d/%d", first.calls, second.calls)
	}
}

func TestChainName(t *testing.T) {
	chain := NewChain(&stubProvider{name: "a"}, &stubProvider{name: "b"})
	if got := chain.Name(); got != "chain(a,b)" {
		t.Errorf("Name() = %q, want chain(a,b)", got)
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(100, 50)
	tracker.Add(200, 75)

	in, out := tracker.Total()
	if in != 300 || out != 125 {
		t.Errorf("Total() = (%d, %d), want (300, 125)", in, out)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tracker.Calls())
	}
	if tracker.Cost() <= 0 {
		t.Errorf("Cost() should be positive, got %f", tracker.Cost())
	}
}
