package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusDegraded RunStatus = "degraded" // completed via the global fallback
)

// StageStatus represents the outcome of a single stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFallback StageStatus = "fallback"
)

// StageResult records one stage's execution for observability.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Error    string      `json:"error,omitempty"`
	Output   any         `json:"output,omitempty"`
}

// PipelineRun is the aggregate record of one pipeline execution.
type PipelineRun struct {
	ID        string        `json:"id"`
	LeadID    string        `json:"lead_id"`
	Status    RunStatus     `json:"status"`
	Stages    []StageResult `json:"stages"`
	StartedAt time.Time     `json:"started_at"`
	Result    *RunOutcome   `json:"result,omitempty"`
}

// RunOutcome summarizes a finished run for metrics and persistence.
type RunOutcome struct {
	Success             bool    `json:"success"`
	ProcessingTimeMs    int64   `json:"processing_time_ms"`
	AppointmentBooked   bool    `json:"appointment_booked"`
	FactChecked         bool    `json:"fact_checked"`
	FactCheckAccuracy   float64 `json:"fact_check_accuracy"`
	FloorPlansDelivered int     `json:"floor_plans_delivered"`
	LeadQualified       bool    `json:"lead_qualified"`
	FallbackUsed        bool    `json:"fallback_used"`
}

// LayerResults exposes each stage's raw output for observability and tests.
type LayerResults struct {
	Psychology   PsychologyProfile   `json:"psychology"`
	Intelligence IntelligencePackage `json:"intelligence"`
	Strategy     Strategy            `json:"strategy"`
	Content      DraftContent        `json:"content"`
	Synthesis    FinalResponse       `json:"synthesis"`
}

// PipelineResult is the full return value of ProcessMessage.
type PipelineResult struct {
	Success            bool                `json:"success"`
	Response           string              `json:"response"`
	AppointmentIntent  bool                `json:"appointment_intent"`
	FloorPlanImages    []FloorPlanImage    `json:"floor_plan_images,omitempty"`
	LeadUpdates        map[string]any      `json:"lead_updates,omitempty"`
	ConsultantBriefing *ConsultantBriefing `json:"consultant_briefing,omitempty"`
	ProcessingTimeMs   int64               `json:"processing_time_ms"`
	QualityScore       float64             `json:"quality_score"`
	RunID              string              `json:"run_id"`
	Layers             LayerResults        `json:"layer_results"`
}
