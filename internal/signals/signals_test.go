package signals

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func TestShouldStopInitiallyFalse(t *testing.T) {
	w := newTestWatcher(t)
	if w.ShouldStop() {
		t.Fatal("fresh watcher should not report stop")
	}
}

func TestSendStopIsObserved(t *testing.T) {
	w := newTestWatcher(t)

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}

	// ShouldStop checks the file directly, so no watcher latency here.
	if !w.ShouldStop() {
		t.Fatal("stop file should be observed")
	}
}

func TestClearResetsState(t *testing.T) {
	w := newTestWatcher(t)

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}
	if !w.ShouldStop() {
		t.Fatal("stop should be set")
	}

	w.Clear()
	if w.ShouldStop() {
		t.Fatal("Clear should reset the stop state and remove the file")
	}
}

func TestBindCancelsOnStop(t *testing.T) {
	w := newTestWatcher(t)

	ctx, cancel := w.Bind(context.Background())
	defer cancel()

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}

	select {
	case <-ctx.Done():
		if !errors.Is(context.Cause(ctx), ErrStopRequested) {
			t.Errorf("cause = %v, want ErrStopRequested", context.Cause(ctx))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("context not cancelled after stop signal")
	}
}

func TestBindReleaseWithoutStop(t *testing.T) {
	w := newTestWatcher(t)

	ctx, cancel := w.Bind(context.Background())
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel func should cancel the context")
	}
	if errors.Is(context.Cause(ctx), ErrStopRequested) {
		t.Error("manual cancel should not report a stop signal")
	}
}
