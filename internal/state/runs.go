package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/skout/pkg/models"
)

// RunRecord is a persisted run summary.
type RunRecord struct {
	ID         string
	RepoURL    string
	Success    bool
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
	Agents     map[string]models.AgentResult
}

// SaveRun persists a completed run and its per-agent results.
func (db *DB) SaveRun(result *models.RunResult, repoURL string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO runs (id, repo_url, success, reason, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, result.RunID, repoURL, boolToInt(result.Success), result.Reason,
			formatTime(result.StartedAt), formatTime(result.FinishedAt))
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for name, agent := range result.Agents {
			dataJSON, err := json.Marshal(agent.Data)
			if err != nil {
				// Unserializable agent data degrades to null rather
				// than losing the whole run.
				dataJSON = []byte("null")
			}

			_, err = tx.Exec(`
				INSERT OR REPLACE INTO agent_results
					(run_id, agent, state, error, data_json, started_at, finished_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, result.RunID, name, string(agent.State), agent.Error, string(dataJSON),
				formatTime(agent.StartedAt), formatTime(agent.FinishedAt))
			if err != nil {
				return fmt.Errorf("insert agent result %s: %w", name, err)
			}
		}

		return nil
	})
}

// GetRun loads a run and its agent results by ID.
func (db *DB) GetRun(runID string) (*RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, repo_url, success, reason, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID)

	record, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("load run: %w", err)
	}

	rows, err := db.Query(`
		SELECT agent, state, error, data_json, started_at, finished_at
		FROM agent_results WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load agent results: %w", err)
	}
	defer rows.Close()

	record.Agents = map[string]models.AgentResult{}
	for rows.Next() {
		var (
			agent, stateStr       string
			errStr, dataJSON      sql.NullString
			startedStr, finishStr sql.NullString
		)
		if err := rows.Scan(&agent, &stateStr, &errStr, &dataJSON, &startedStr, &finishStr); err != nil {
			return nil, fmt.Errorf("scan agent result: %w", err)
		}

		ar := models.AgentResult{
			Agent: agent,
			State: models.RunState(stateStr),
			Error: errStr.String,
		}
		if dataJSON.Valid && dataJSON.String != "null" {
			var data any
			if err := json.Unmarshal([]byte(dataJSON.String), &data); err == nil {
				ar.Data = data
			}
		}
		if startedStr.Valid {
			ar.StartedAt, _ = parseTime(startedStr.String)
		}
		if finishStr.Valid {
			ar.FinishedAt, _ = parseTime(finishStr.String)
		}

		record.Agents[agent] = ar
	}

	return record, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, repo_url, success, reason, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var (
		record                RunRecord
		success               int
		reason                sql.NullString
		startedStr, finishStr sql.NullString
	)
	if err := s.Scan(&record.ID, &record.RepoURL, &success, &reason, &startedStr, &finishStr); err != nil {
		return nil, err
	}

	record.Success = success != 0
	record.Reason = reason.String
	if startedStr.Valid {
		record.StartedAt, _ = parseTime(startedStr.String)
	}
	if finishStr.Valid {
		record.FinishedAt, _ = parseTime(finishStr.String)
	}

	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
