package model

// CommunicationStyle classifies how the lead writes.
type CommunicationStyle string

const (
	StyleDirect     CommunicationStyle = "direct"
	StylePolite     CommunicationStyle = "polite"
	StyleAnalytical CommunicationStyle = "analytical"
	StyleCasual     CommunicationStyle = "casual"
	StyleSkeptical  CommunicationStyle = "skeptical"
)

// AllCommunicationStyles lists the valid styles for model-output validation.
func AllCommunicationStyles() []CommunicationStyle {
	return []CommunicationStyle{StyleDirect, StylePolite, StyleAnalytical, StyleCasual, StyleSkeptical}
}

// ResistanceLevel buckets how guarded the lead is.
type ResistanceLevel string

const (
	ResistanceLow    ResistanceLevel = "low"
	ResistanceMedium ResistanceLevel = "medium"
	ResistanceHigh   ResistanceLevel = "high"
)

// ConversationStage tracks where the lead sits in the funnel for this thread.
type ConversationStage string

const (
	StageInitial    ConversationStage = "initial"
	StageBrowsing   ConversationStage = "browsing"
	StageInterested ConversationStage = "interested"
	StageQualified  ConversationStage = "qualified"
	StageObjecting  ConversationStage = "objecting"
)

// PsychologyProfile is stage 1's output: a behavioral read of the lead.
// Produced once per run and read-only afterwards. ConversationStage is always
// overlaid by the deterministic heuristic, never taken from the model.
type PsychologyProfile struct {
	CommunicationStyle   CommunicationStyle `json:"communication_style"`
	ResistancePatterns   []string           `json:"resistance_patterns"`
	UrgencyScore         float64            `json:"urgency_score"`
	ResistanceLevel      ResistanceLevel    `json:"resistance_level"`
	BuyingSignals        []string           `json:"buying_signals"`
	PainPoints           []string           `json:"pain_points"`
	ConversationStage    ConversationStage  `json:"conversation_stage"`
	PsychologicalProfile string             `json:"psychological_profile"`
	RecommendedApproach  string             `json:"recommended_approach"`
	AppointmentReadiness string             `json:"appointment_readiness"` // cold, warming_up, ready, hot
	NextBestAction       string             `json:"next_best_action"`
	Fallback             bool               `json:"fallback"`
}

// DefaultPsychologyProfile is the neutral profile substituted when the
// analysis call fails. Schema-identical to a successful profile.
func DefaultPsychologyProfile() PsychologyProfile {
	return PsychologyProfile{
		CommunicationStyle:   StylePolite,
		ResistancePatterns:   []string{},
		UrgencyScore:         0.5,
		ResistanceLevel:      ResistanceMedium,
		BuyingSignals:        []string{},
		PainPoints:           []string{},
		ConversationStage:    StageBrowsing,
		PsychologicalProfile: "standard property seeker",
		RecommendedApproach:  "consultative",
		AppointmentReadiness: "warming_up",
		NextBestAction:       "build rapport and qualify requirements",
		Fallback:             true,
	}
}
