package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

const strategySystemPrompt = `You are a property sales strategist. Given a behavioral read of the lead and the data gathered about matching properties, plan the next reply. Respond with a valid JSON object only:
{"approach": "<one word, e.g. educational|consultative|direct>", "conversation_goal": "<1 sentence>", "appointment_strategy": "none|soft_mention|direct_ask|assumptive_close", "property_focus": "<which properties or theme to center on>", "objection_handling": ["<tactic>"], "trust_tactics": ["<tactic>"], "value_proposition": "<1 sentence>", "urgency_tactic": "<tactic or empty string>", "use_floor_plans": true|false, "use_market_data": true|false, "next_step_guidance": "<1 sentence>", "conversion_priority": "low|medium|high"}`

const strategyUserPrompt = `Lead profile: source=%s, status=%s, budget=%.0f

Psychology read:
style=%s resistance=%s stage=%s urgency=%.2f readiness=%s
profile: %s
recommended approach: %s

Intelligence:
%d matching properties, data confidence %.2f
market data available: %t, floor plans available: %t
top matches: %s`

// PlanStrategy implements stage 3: one model call turning the psychology and
// intelligence reads into a concrete plan for the reply.
func PlanStrategy(
	ctx context.Context,
	convo model.ConversationContext,
	psych model.PsychologyProfile,
	intel model.IntelligencePackage,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
) (model.Strategy, StageOutcome) {
	prompt := fmt.Sprintf(strategyUserPrompt,
		convo.Lead.Source, convo.Lead.Status, convo.Lead.Budget,
		psych.CommunicationStyle, psych.ResistanceLevel, psych.ConversationStage,
		psych.UrgencyScore, psych.AppointmentReadiness,
		psych.PsychologicalProfile, psych.RecommendedApproach,
		len(intel.Properties), intel.DataConfidence,
		intel.Market != nil, intel.FloorPlans != nil,
		summarizeProperties(intel.Properties),
	)

	temp := 0.5
	text, usage, err := callModelJSON(ctx, aiClient, anthropic.MessageRequest{
		Model:       aiCfg.SonnetModel,
		MaxTokens:   1024,
		System:      anthropic.BuildCachedSystemBlocks(strategySystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("strategy: model call failed, using neutral plan",
			zap.String("lead_id", convo.LeadID),
			zap.Error(err),
		)
		return model.DefaultStrategy(), fallbackOutcome(err)
	}

	return parseStrategy(text), successOutcome(usage)
}

func parseStrategy(text string) model.Strategy {
	var raw struct {
		Approach            string   `json:"approach"`
		ConversationGoal    string   `json:"conversation_goal"`
		AppointmentStrategy string   `json:"appointment_strategy"`
		PropertyFocus       string   `json:"property_focus"`
		ObjectionHandling   []string `json:"objection_handling"`
		TrustTactics        []string `json:"trust_tactics"`
		ValueProposition    string   `json:"value_proposition"`
		UrgencyTactic       string   `json:"urgency_tactic"`
		UseFloorPlans       *bool    `json:"use_floor_plans"`
		UseMarketData       *bool    `json:"use_market_data"`
		NextStepGuidance    string   `json:"next_step_guidance"`
		ConversionPriority  string   `json:"conversion_priority"`
	}

	strat := model.DefaultStrategy()
	strat.Fallback = false

	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return strat
	}

	if raw.Approach != "" {
		strat.Approach = raw.Approach
	}
	if raw.ConversationGoal != "" {
		strat.ConversationGoal = raw.ConversationGoal
	}
	switch model.AppointmentStrategy(raw.AppointmentStrategy) {
	case model.AppointmentNone, model.AppointmentSoftMention, model.AppointmentDirectAsk, model.AppointmentAssumptive:
		strat.AppointmentStrategy = model.AppointmentStrategy(raw.AppointmentStrategy)
	}
	if raw.PropertyFocus != "" {
		strat.PropertyFocus = raw.PropertyFocus
	}
	if raw.ObjectionHandling != nil {
		strat.ObjectionHandling = raw.ObjectionHandling
	}
	if raw.TrustTactics != nil {
		strat.TrustTactics = raw.TrustTactics
	}
	if raw.ValueProposition != "" {
		strat.ValueProposition = raw.ValueProposition
	}
	strat.UrgencyTactic = raw.UrgencyTactic
	if raw.UseFloorPlans != nil {
		strat.UseFloorPlans = *raw.UseFloorPlans
	}
	if raw.UseMarketData != nil {
		strat.UseMarketData = *raw.UseMarketData
	}
	if raw.NextStepGuidance != "" {
		strat.NextStepGuidance = raw.NextStepGuidance
	}
	switch model.ConversionPriority(raw.ConversionPriority) {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		strat.ConversionPriority = model.ConversionPriority(raw.ConversionPriority)
	}

	return strat
}

func summarizeProperties(properties []model.PropertyRecord) string {
	if len(properties) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(properties))
	for _, rec := range properties {
		verified := "unverified"
		if rec.Verification != nil && rec.Verification.Verified {
			verified = "verified"
		}
		parts = append(parts, fmt.Sprintf("%s (%s, from $%.0f, %s)", rec.ProjectName, rec.District, rec.PriceFrom, verified))
	}
	return strings.Join(parts, "; ")
}
