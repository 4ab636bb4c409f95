package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/skout/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	return db
}

func sampleRun(id string, started time.Time) *models.RunResult {
	return &models.RunResult{
		RunID:      id,
		Success:    true,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Agents: map[string]models.AgentResult{
			"clone": {
				Agent:      "clone",
				State:      models.RunStateSucceeded,
				Data:       map[string]any{"files": float64(12)},
				StartedAt:  started,
				FinishedAt: started.Add(30 * time.Second),
			},
			"report": {
				Agent: "report",
				State: models.RunStateFailed,
				Error: "provider unavailable",
			},
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := db.SaveRun(sampleRun("run-1", started), "https://example.com/widget"); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	record, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if record.RepoURL != "https://example.com/widget" {
		t.Errorf("RepoURL = %q", record.RepoURL)
	}
	if !record.Success {
		t.Error("Success should round-trip as true")
	}
	if !record.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", record.StartedAt, started)
	}

	if len(record.Agents) != 2 {
		t.Fatalf("expected 2 agent results, got %d", len(record.Agents))
	}
	clone := record.Agents["clone"]
	if clone.State != models.RunStateSucceeded {
		t.Errorf("clone state = %s", clone.State)
	}
	data, ok := clone.Data.(map[string]any)
	if !ok || data["files"] != float64(12) {
		t.Errorf("clone data did not round-trip: %v", clone.Data)
	}
	if record.Agents["report"].Error != "provider unavailable" {
		t.Errorf("report error = %q", record.Agents["report"].Error)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun("missing"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestSaveRunIsUpsert(t *testing.T) {
	db := openTestDB(t)
	started := time.Now().UTC().Truncate(time.Second)

	run := sampleRun("run-1", started)
	if err := db.SaveRun(run, "https://example.com/widget"); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	run.Success = false
	run.Reason = "cancelled"
	if err := db.SaveRun(run, "https://example.com/widget"); err != nil {
		t.Fatalf("second SaveRun failed: %v", err)
	}

	record, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if record.Success || record.Reason != "cancelled" {
		t.Errorf("update not applied: %+v", record)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("upsert should not duplicate rows, got %d", len(runs))
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		if err := db.SaveRun(run, "https://example.com/widget"); err != nil {
			t.Fatalf("SaveRun %s failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("runs not newest first: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := openTestDB(t)

	old := sampleRun("run-old", time.Now().Add(-48*time.Hour))
	recent := sampleRun("run-new", time.Now())
	if err := db.SaveRun(old, "u"); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := db.SaveRun(recent, "u"); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	deleted, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-new" {
		t.Errorf("unexpected remaining runs: %v", runs)
	}
}
