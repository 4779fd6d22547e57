package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/db"
	"github.com/sells-group/lead-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	outcome    JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES pipeline_runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_lead_id ON pipeline_runs(lead_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateRun inserts a new running run and returns it.
func (s *PostgresStore) CreateRun(ctx context.Context, leadID string) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, lead_id, status, started_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		run.ID, run.LeadID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

// CompleteRun records the final status and outcome of a run.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, outcome *model.RunOutcome) error {
	var outcomeJSON []byte
	if outcome != nil {
		var err error
		outcomeJSON, err = json.Marshal(outcome)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal outcome")
		}
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, outcome = $2, updated_at = $3 WHERE id = $4`,
		string(status), outcomeJSON, time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "postgres: complete run")
}

// CreateStage inserts a running stage row and returns its id.
func (s *PostgresStore) CreateStage(ctx context.Context, runID, name string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, 'running', $4)`,
		id, runID, name, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create stage")
	}
	return id, nil
}

// CompleteStage records a stage's result.
func (s *PostgresStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage result")
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE run_stages SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, stageID,
	)
	return eris.Wrap(err, "postgres: complete stage")
}

// GetRun fetches a run with its stages.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	var (
		run         model.PipelineRun
		status      string
		outcomeJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, status, outcome, started_at FROM pipeline_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.LeadID, &status, &outcomeJSON, &run.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: get run %s: not found", runID)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	run.Status = model.RunStatus(status)
	if len(outcomeJSON) > 0 {
		if err := json.Unmarshal(outcomeJSON, &run.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal outcome")
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT result FROM run_stages WHERE run_id = $1 ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run stages")
	}
	defer rows.Close()

	for rows.Next() {
		var resultJSON []byte
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		if len(resultJSON) == 0 {
			continue
		}
		var sr model.StageResult
		if err := json.Unmarshal(resultJSON, &sr); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stage result")
		}
		run.Stages = append(run.Stages, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate stages")
	}

	return &run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.LeadID != "" {
		conds = append(conds, "lead_id = "+arg(filter.LeadID))
	}
	if !filter.CreatedAfter.IsZero() {
		conds = append(conds, "started_at > "+arg(filter.CreatedAfter))
	}

	query := `SELECT id, lead_id, status, outcome, started_at FROM pipeline_runs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var (
			run         model.PipelineRun
			status      string
			outcomeJSON []byte
		)
		if err := rows.Scan(&run.ID, &run.LeadID, &status, &outcomeJSON, &run.StartedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		run.Status = model.RunStatus(status)
		if len(outcomeJSON) > 0 {
			if err := json.Unmarshal(outcomeJSON, &run.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal outcome")
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}

	return runs, nil
}
