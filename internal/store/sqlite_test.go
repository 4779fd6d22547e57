package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RunLifecycle(t *testing.T) {
	t.Parallel()

	st := newTestSQLite(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "lead-1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	stageID, err := st.CreateStage(ctx, run.ID, "1_psychology")
	require.NoError(t, err)
	require.NotEmpty(t, stageID)

	require.NoError(t, st.CompleteStage(ctx, stageID, &model.StageResult{
		Name:     "1_psychology",
		Status:   model.StageStatusComplete,
		Duration: 420,
	}))

	outcome := &model.RunOutcome{
		Success:           true,
		ProcessingTimeMs:  1234,
		AppointmentBooked: true,
		FactCheckAccuracy: 0.9,
		LeadQualified:     true,
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, outcome))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "lead-1", got.LeadID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.True(t, got.Result.AppointmentBooked)
	assert.InDelta(t, 0.9, got.Result.FactCheckAccuracy, 1e-9)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, "1_psychology", got.Stages[0].Name)
	assert.Equal(t, int64(420), got.Stages[0].Duration)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	t.Parallel()

	st := newTestSQLite(t)
	_, err := st.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	t.Parallel()

	st := newTestSQLite(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "lead-1")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, model.RunStatusComplete, &model.RunOutcome{Success: true}))

	r2, err := st.CreateRun(ctx, "lead-2")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r2.ID, model.RunStatusDegraded, &model.RunOutcome{FallbackUsed: true}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	degraded, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusDegraded})
	require.NoError(t, err)
	require.Len(t, degraded, 1)
	assert.Equal(t, "lead-2", degraded[0].LeadID)

	byLead, err := st.ListRuns(ctx, RunFilter{LeadID: "lead-1"})
	require.NoError(t, err)
	require.Len(t, byLead, 1)

	none, err := st.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().UTC().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
