// Package monitoring aggregates per-stage and per-run pipeline metrics.
package monitoring

import (
	"sync"
	"time"

	"github.com/sells-group/lead-engine/internal/model"
)

// Sink receives pipeline telemetry. Implementations must be safe for
// concurrent use: runs from different conversations complete independently.
type Sink interface {
	RecordStageAttempt(stage string, duration time.Duration, success bool, err error)
	RecordRunResult(outcome model.RunOutcome)
}

// StageStats aggregates attempts for a single stage.
type StageStats struct {
	Attempts      int     `json:"attempts"`
	Successes     int     `json:"successes"`
	Fallbacks     int     `json:"fallbacks"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Snapshot is a point-in-time view of the recorder's counters.
type Snapshot struct {
	Runs                int                   `json:"runs"`
	GlobalFallbacks     int                   `json:"global_fallbacks"`
	AppointmentsBooked  int                   `json:"appointments_booked"`
	LeadsQualified      int                   `json:"leads_qualified"`
	FactChecked         int                   `json:"fact_checked"`
	FloorPlansDelivered int                   `json:"floor_plans_delivered"`
	AvgProcessingMs     float64               `json:"avg_processing_ms"`
	AvgFactAccuracy     float64               `json:"avg_fact_accuracy"`
	Stages              map[string]StageStats `json:"stages"`
	CollectedAt         time.Time             `json:"collected_at"`
}

// Recorder is an in-process Sink guarded by a mutex.
type Recorder struct {
	mu sync.Mutex

	runs                int
	globalFallbacks     int
	appointments        int
	qualified           int
	factChecked         int
	floorPlans          int
	totalProcessingMs   int64
	totalFactAccuracy   float64
	factAccuracySamples int

	stages map[string]*stageAccum
}

type stageAccum struct {
	attempts  int
	successes int
	fallbacks int
	totalMs   int64
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{stages: make(map[string]*stageAccum)}
}

// RecordStageAttempt implements Sink.
func (r *Recorder) RecordStageAttempt(stage string, duration time.Duration, success bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.stages[stage]
	if !ok {
		acc = &stageAccum{}
		r.stages[stage] = acc
	}
	acc.attempts++
	acc.totalMs += duration.Milliseconds()
	if success {
		acc.successes++
	} else {
		acc.fallbacks++
	}
}

// RecordRunResult implements Sink.
func (r *Recorder) RecordRunResult(outcome model.RunOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs++
	r.totalProcessingMs += outcome.ProcessingTimeMs
	if !outcome.Success {
		r.globalFallbacks++
	}
	if outcome.AppointmentBooked {
		r.appointments++
	}
	if outcome.LeadQualified {
		r.qualified++
	}
	if outcome.FactChecked {
		r.factChecked++
		r.totalFactAccuracy += outcome.FactCheckAccuracy
		r.factAccuracySamples++
	}
	r.floorPlans += outcome.FloorPlansDelivered
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Runs:                r.runs,
		GlobalFallbacks:     r.globalFallbacks,
		AppointmentsBooked:  r.appointments,
		LeadsQualified:      r.qualified,
		FactChecked:         r.factChecked,
		FloorPlansDelivered: r.floorPlans,
		Stages:              make(map[string]StageStats, len(r.stages)),
		CollectedAt:         time.Now().UTC(),
	}
	if r.runs > 0 {
		snap.AvgProcessingMs = float64(r.totalProcessingMs) / float64(r.runs)
	}
	if r.factAccuracySamples > 0 {
		snap.AvgFactAccuracy = r.totalFactAccuracy / float64(r.factAccuracySamples)
	}
	for name, acc := range r.stages {
		st := StageStats{
			Attempts:  acc.attempts,
			Successes: acc.successes,
			Fallbacks: acc.fallbacks,
		}
		if acc.attempts > 0 {
			st.AvgDurationMs = float64(acc.totalMs) / float64(acc.attempts)
		}
		snap.Stages[name] = st
	}
	return snap
}

// NopSink discards all telemetry. Useful in tests.
type NopSink struct{}

// RecordStageAttempt implements Sink.
func (NopSink) RecordStageAttempt(string, time.Duration, bool, error) {}

// RecordRunResult implements Sink.
func (NopSink) RecordRunResult(model.RunOutcome) {}
