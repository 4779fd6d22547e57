package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used by the process
// CLI command where a postgres instance is not available.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	outcome    TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_stages (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES pipeline_runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_lead_id ON pipeline_runs(lead_id);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new running run and returns it.
func (s *SQLiteStore) CreateRun(ctx context.Context, leadID string) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, lead_id, status, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.LeadID, string(run.Status), run.StartedAt, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

// CompleteRun records the final status and outcome of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, outcome *model.RunOutcome) error {
	var outcomeJSON []byte
	if outcome != nil {
		var err error
		outcomeJSON, err = json.Marshal(outcome)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal outcome")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, outcome = ?, updated_at = ? WHERE id = ?`,
		string(status), string(outcomeJSON), time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "sqlite: complete run")
}

// CreateStage inserts a running stage row and returns its id.
func (s *SQLiteStore) CreateStage(ctx context.Context, runID, name string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		id, runID, name, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create stage")
	}
	return id, nil
}

// CompleteStage records a stage's result.
func (s *SQLiteStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage result")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE run_stages SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), stageID,
	)
	return eris.Wrap(err, "sqlite: complete stage")
}

// GetRun fetches a run with its stages.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	var (
		run         model.PipelineRun
		status      string
		outcomeJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, status, outcome, started_at FROM pipeline_runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &run.LeadID, &status, &outcomeJSON, &run.StartedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("sqlite: get run %s: not found", runID)
		}
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	run.Status = model.RunStatus(status)
	if outcomeJSON.Valid && outcomeJSON.String != "" {
		if err := json.Unmarshal([]byte(outcomeJSON.String), &run.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal outcome")
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM run_stages WHERE run_id = ? ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run stages")
	}
	defer rows.Close()

	for rows.Next() {
		var resultJSON sql.NullString
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		if !resultJSON.Valid || resultJSON.String == "" {
			continue
		}
		var sr model.StageResult
		if err := json.Unmarshal([]byte(resultJSON.String), &sr); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stage result")
		}
		run.Stages = append(run.Stages, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate stages")
	}

	return &run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.LeadID != "" {
		conds = append(conds, "lead_id = ?")
		args = append(args, filter.LeadID)
	}
	if !filter.CreatedAfter.IsZero() {
		conds = append(conds, "started_at > ?")
		args = append(args, filter.CreatedAfter)
	}

	query := `SELECT id, lead_id, status, outcome, started_at FROM pipeline_runs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var (
			run         model.PipelineRun
			status      string
			outcomeJSON sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.LeadID, &status, &outcomeJSON, &run.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Status = model.RunStatus(status)
		if outcomeJSON.Valid && outcomeJSON.String != "" {
			if err := json.Unmarshal([]byte(outcomeJSON.String), &run.Result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal outcome")
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}

	return runs, nil
}
