// Package store persists pipeline runs and their per-stage records for
// observability. Persistence is best-effort: the pipeline logs and continues
// when a store write fails.
package store

import (
	"context"
	"time"

	"github.com/sells-group/lead-engine/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	LeadID       string          `json:"lead_id,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for pipeline runs.
type Store interface {
	CreateRun(ctx context.Context, leadID string) (*model.PipelineRun, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, outcome *model.RunOutcome) error
	CreateStage(ctx context.Context, runID, name string) (string, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error
	GetRun(ctx context.Context, runID string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
