package model

// AppointmentStrategy controls how hard the reply pushes for a meeting.
type AppointmentStrategy string

const (
	AppointmentNone        AppointmentStrategy = "none"
	AppointmentSoftMention AppointmentStrategy = "soft_mention"
	AppointmentDirectAsk   AppointmentStrategy = "direct_ask"
	AppointmentAssumptive  AppointmentStrategy = "assumptive_close"
)

// ConversionPriority ranks how aggressively to convert this lead now.
type ConversionPriority string

const (
	PriorityLow    ConversionPriority = "low"
	PriorityMedium ConversionPriority = "medium"
	PriorityHigh   ConversionPriority = "high"
)

// Strategy is stage 3's output: the plan the reply should follow.
type Strategy struct {
	Approach            string              `json:"approach"`
	ConversationGoal    string              `json:"conversation_goal"`
	AppointmentStrategy AppointmentStrategy `json:"appointment_strategy"`
	PropertyFocus       string              `json:"property_focus"`
	ObjectionHandling   []string            `json:"objection_handling"`
	TrustTactics        []string            `json:"trust_tactics"`
	ValueProposition    string              `json:"value_proposition"`
	UrgencyTactic       string              `json:"urgency_tactic"`
	UseFloorPlans       bool                `json:"use_floor_plans"`
	UseMarketData       bool                `json:"use_market_data"`
	NextStepGuidance    string              `json:"next_step_guidance"`
	ConversionPriority  ConversionPriority  `json:"conversion_priority"`
	Fallback            bool                `json:"fallback"`
}

// DefaultStrategy is the neutral plan substituted when planning fails.
func DefaultStrategy() Strategy {
	return Strategy{
		Approach:            "educational",
		ConversationGoal:    "understand requirements and build trust",
		AppointmentStrategy: AppointmentSoftMention,
		PropertyFocus:       "general market",
		ObjectionHandling:   []string{},
		TrustTactics:        []string{"share market knowledge"},
		ValueProposition:    "expert guidance through the buying process",
		UrgencyTactic:       "",
		UseFloorPlans:       false,
		UseMarketData:       false,
		NextStepGuidance:    "continue the conversation naturally",
		ConversionPriority:  PriorityMedium,
		Fallback:            true,
	}
}
