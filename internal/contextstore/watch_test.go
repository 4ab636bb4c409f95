package contextstore

import (
	"testing"
	"time"
)

// recvUpdate pulls one update with a timeout so a broken watch fails the
// test instead of hanging it.
func recvUpdate(t *testing.T, w *Watch) Entry {
	t.Helper()
	select {
	case e, ok := <-w.Updates():
		if !ok {
			t.Fatal("updates channel closed unexpectedly")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch update")
		return Entry{}
	}
}

func TestWatchObservesWrite(t *testing.T) {
	s := New()
	w := s.Watch("repo")
	defer w.Cancel()

	s.Set("repo/files", "data", "cloner")

	e := recvUpdate(t, w)
	if e.Path != "repo/files" {
		t.Errorf("expected path repo/files, got %s", e.Path)
	}
	if e.Value != "data" {
		t.Errorf("expected value data, got %v", e.Value)
	}
	if e.Version != 1 {
		t.Errorf("expected version 1, got %d", e.Version)
	}
}

func TestWatchPrefixMatchesDescendants(t *testing.T) {
	s := New()
	w := s.Watch("repo")
	defer w.Cancel()

	s.Set("repo/analysis_status/security", "in_progress", "scanner")
	s.Set("unrelated/path", 1, "other")

	e := recvUpdate(t, w)
	if e.Path != "repo/analysis_status/security" {
		t.Errorf("expected nested path, got %s", e.Path)
	}

	// The unrelated write must never arrive.
	select {
	case e := <-w.Updates():
		t.Errorf("unexpected update for %s", e.Path)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchReplaysLatestOnSubscribe(t *testing.T) {
	s := New()
	s.Set("repo/files", "v1", "cloner")
	s.Set("repo/files", "v2", "cloner")

	w := s.Watch("repo")
	defer w.Cancel()

	e := recvUpdate(t, w)
	if e.Value != "v2" {
		t.Errorf("expected replay of latest value v2, got %v", e.Value)
	}
	if e.Version != 2 {
		t.Errorf("expected version 2, got %d", e.Version)
	}
}

func TestWatchCoalescesButNeverDeliversStale(t *testing.T) {
	s := New()
	w := s.Watch("counter")
	defer w.Cancel()

	// Burst of writes while the consumer is not pulling. Intermediate
	// versions may coalesce but versions must never go backwards.
	for i := 1; i <= 100; i++ {
		s.Set("counter/value", i, "w")
	}

	var lastVersion uint64
	var lastValue int
	deadline := time.After(2 * time.Second)
	for lastValue != 100 {
		select {
		case e := <-w.Updates():
			if e.Version <= lastVersion {
				t.Fatalf("version went backwards: %d after %d", e.Version, lastVersion)
			}
			lastVersion = e.Version
			lastValue = e.Value.(int)
		case <-deadline:
			t.Fatalf("never observed final value, last seen %d", lastValue)
		}
	}
}

func TestWatchPerPathOrderPreserved(t *testing.T) {
	s := New()
	w := s.Watch("run")
	defer w.Cancel()

	s.Set("run/a", 1, "w")
	s.Set("run/b", 1, "w")

	lastVer := make(map[string]uint64)
	for i := 0; i < 2; i++ {
		e := recvUpdate(t, w)
		if e.Version <= lastVer[e.Path] {
			t.Errorf("path %s delivered out of order", e.Path)
		}
		lastVer[e.Path] = e.Version
	}
}

func TestWatchCancelStopsDelivery(t *testing.T) {
	s := New()
	w := s.Watch("repo")

	w.Cancel()
	s.Set("repo/files", "late", "cloner")

	// Channel should be closed with no pending delivery of the late write.
	select {
	case e, ok := <-w.Updates():
		if ok && e.Value == "late" {
			t.Error("received update written after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("updates channel not closed after cancel")
	}
}

func TestWatchCancelIdempotent(t *testing.T) {
	s := New()
	w := s.Watch("repo")
	w.Cancel()
	w.Cancel() // must not panic or deadlock
}

func TestIndependentSubscriptions(t *testing.T) {
	s := New()
	w1 := s.Watch("repo")
	w2 := s.Watch("repo")
	defer w2.Cancel()

	w1.Cancel()
	s.Set("repo/files", "data", "cloner")

	e := recvUpdate(t, w2)
	if e.Value != "data" {
		t.Errorf("surviving subscription missed write, got %v", e.Value)
	}
}

func TestStoreCloseCancelsWatches(t *testing.T) {
	s := New()
	w := s.Watch("repo")

	s.Close()

	select {
	case _, ok := <-w.Updates():
		if ok {
			t.Error("expected closed channel after store close")
		}
	case <-time.After(time.Second):
		t.Error("updates channel not closed after store close")
	}

	// Entries written before close stay readable.
	s.Set("repo/files", 1, "a")
	if _, ok := s.Get("repo/files"); !ok {
		t.Error("store should remain readable after close")
	}
}
