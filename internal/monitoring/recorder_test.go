package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func TestRecorder_StageAttempts(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordStageAttempt("1_psychology", 100*time.Millisecond, true, nil)
	r.RecordStageAttempt("1_psychology", 300*time.Millisecond, false, eris.New("api down"))

	snap := r.Snapshot()
	st, ok := snap.Stages["1_psychology"]
	require.True(t, ok)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 1, st.Successes)
	assert.Equal(t, 1, st.Fallbacks)
	assert.InDelta(t, 200, st.AvgDurationMs, 1e-9)
}

func TestRecorder_RunResults(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordRunResult(model.RunOutcome{
		Success:             true,
		ProcessingTimeMs:    1000,
		AppointmentBooked:   true,
		FactChecked:         true,
		FactCheckAccuracy:   0.8,
		FloorPlansDelivered: 2,
		LeadQualified:       true,
	})
	r.RecordRunResult(model.RunOutcome{
		Success:          false,
		ProcessingTimeMs: 3000,
		FallbackUsed:     true,
	})

	snap := r.Snapshot()
	assert.Equal(t, 2, snap.Runs)
	assert.Equal(t, 1, snap.GlobalFallbacks)
	assert.Equal(t, 1, snap.AppointmentsBooked)
	assert.Equal(t, 1, snap.LeadsQualified)
	assert.Equal(t, 1, snap.FactChecked)
	assert.Equal(t, 2, snap.FloorPlansDelivered)
	assert.InDelta(t, 2000, snap.AvgProcessingMs, 1e-9)
	assert.InDelta(t, 0.8, snap.AvgFactAccuracy, 1e-9)
}

func TestRecorder_ConcurrentUse(t *testing.T) {
	t.Parallel()

	r := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordStageAttempt("2_intelligence", 10*time.Millisecond, true, nil)
			r.RecordRunResult(model.RunOutcome{Success: true, ProcessingTimeMs: 100})
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	assert.Equal(t, 50, snap.Runs)
	assert.Equal(t, 50, snap.Stages["2_intelligence"].Attempts)
}

func TestNopSink(t *testing.T) {
	t.Parallel()

	// Just verify the no-op implementation satisfies the interface calls.
	var s Sink = NopSink{}
	s.RecordStageAttempt("1_psychology", time.Second, true, nil)
	s.RecordRunResult(model.RunOutcome{})
}
