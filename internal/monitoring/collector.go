package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

// HistorySnapshot holds a lookback view of persisted runs, for the metrics
// command and dashboard. Unlike Recorder, this survives process restarts.
type HistorySnapshot struct {
	Total           int     `json:"total"`
	Complete        int     `json:"complete"`
	Degraded        int     `json:"degraded"`
	DegradedRate    float64 `json:"degraded_rate"`
	Appointments    int     `json:"appointments"`
	AppointmentRate float64 `json:"appointment_rate"`
	Qualified       int     `json:"qualified"`
	FallbackRuns    int     `json:"fallback_runs"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector builds history snapshots from the run store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run history over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HistorySnapshot, error) {
	snap := &HistorySnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.Total = len(runs)
	var totalMs int64
	var timed int

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusDegraded:
			snap.Degraded++
		}
		if r.Result == nil {
			continue
		}
		if r.Result.AppointmentBooked {
			snap.Appointments++
		}
		if r.Result.LeadQualified {
			snap.Qualified++
		}
		if r.Result.FallbackUsed {
			snap.FallbackRuns++
		}
		totalMs += r.Result.ProcessingTimeMs
		timed++
	}

	finished := snap.Complete + snap.Degraded
	if finished > 0 {
		snap.DegradedRate = float64(snap.Degraded) / float64(finished)
	}
	if snap.Total > 0 {
		snap.AppointmentRate = float64(snap.Appointments) / float64(snap.Total)
	}
	if timed > 0 {
		snap.AvgProcessingMs = float64(totalMs) / float64(timed)
	}

	return snap, nil
}
