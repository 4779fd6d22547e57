package model

// AppointmentCall grades the strength of the meeting ask in a draft.
type AppointmentCall string

const (
	CallNone   AppointmentCall = "none"
	CallSoft   AppointmentCall = "soft"
	CallDirect AppointmentCall = "direct"
)

// DraftContent is stage 4's output: the drafted reply before validation.
type DraftContent struct {
	Message          string           `json:"message"`
	Tone             string           `json:"tone"`
	AppointmentCall  AppointmentCall  `json:"appointment_call"`
	PropertyMentions []string         `json:"property_mentions"`
	MarketInsights   []string         `json:"market_insights"`
	TrustSignals     []string         `json:"trust_signals"`
	FloorPlanImages  []FloorPlanImage `json:"floor_plan_images,omitempty"`
	Fallback         bool             `json:"fallback"`
}

// DefaultDraftContent is the generic greeting substituted when drafting fails.
func DefaultDraftContent() DraftContent {
	return DraftContent{
		Message:          "Thanks for reaching out! I'd love to help you find the right property. Could you share a bit more about what you're looking for?",
		Tone:             "warm",
		AppointmentCall:  CallNone,
		PropertyMentions: []string{},
		MarketInsights:   []string{},
		TrustSignals:     []string{},
		Fallback:         true,
	}
}
