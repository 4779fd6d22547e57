package model

// ConfidenceLevel grades overall confidence in the final reply.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// RecommendedProperty is one entry in a consultant briefing.
type RecommendedProperty struct {
	ProjectName string  `json:"project_name"`
	District    string  `json:"district"`
	PriceFrom   float64 `json:"price_from"`
	Verified    bool    `json:"verified"`
}

// ConsultantBriefing is the structured handoff produced when appointment
// intent is detected, for the human consultant who takes over.
type ConsultantBriefing struct {
	LeadSummary           string                `json:"lead_summary"`
	Requirements          string                `json:"requirements"`
	RecommendedProperties []RecommendedProperty `json:"recommended_properties"`
	StrategyNotes         string                `json:"strategy_notes"`
	ConversionNote        string                `json:"conversion_note"`
}

// FinalResponse is stage 5's output and the pipeline's return value.
type FinalResponse struct {
	Message               string              `json:"message"`
	QualityScore          float64             `json:"quality_score"`
	AppointmentIntent     bool                `json:"appointment_intent"`
	FactChecked           bool                `json:"fact_checked"`
	CulturallyAppropriate bool                `json:"culturally_appropriate"`
	LeadUpdates           map[string]any      `json:"lead_updates,omitempty"`
	FloorPlanImages       []FloorPlanImage    `json:"floor_plan_images,omitempty"`
	ConsultantBriefing    *ConsultantBriefing `json:"consultant_briefing,omitempty"`
	ConfidenceLevel       ConfidenceLevel     `json:"confidence_level"`
	Fallback              bool                `json:"fallback"`
}

// PassthroughResponse wraps a stage-4 draft unmodified when validation fails.
func PassthroughResponse(draft DraftContent) FinalResponse {
	return FinalResponse{
		Message:               draft.Message,
		QualityScore:          0.5,
		AppointmentIntent:     false,
		FactChecked:           false,
		CulturallyAppropriate: true,
		FloorPlanImages:       draft.FloorPlanImages,
		ConfidenceLevel:       ConfidenceLow,
		Fallback:              true,
	}
}
