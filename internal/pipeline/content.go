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

const contentSystemPrompt = `You write WhatsApp-style replies for a Singapore property consultancy. Follow the given strategy exactly. Keep the message under 120 words, natural and conversational, no markdown. Respond with a valid JSON object only:
{"message": "<the reply text>", "tone": "<one word>", "appointment_call": "none|soft|direct", "property_mentions": ["<project name>"], "market_insights": ["<insight used>"], "trust_signals": ["<signal used>"]}`

const contentUserPrompt = `Lead's latest message:
%s

Psychology: style=%s stage=%s resistance=%s
Strategy: approach=%s, goal=%s, appointment=%s, focus=%s, value=%s, urgency=%q, next step=%s

Properties to draw on: %s
%s%s`

// GenerateContent implements stage 4: drafts the reply per the strategy. The
// floor-plan attachment is decided locally from the strategy flag and the
// intelligence bundle, never by the model.
func GenerateContent(
	ctx context.Context,
	convo model.ConversationContext,
	psych model.PsychologyProfile,
	intel model.IntelligencePackage,
	strat model.Strategy,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
) (model.DraftContent, StageOutcome) {
	prompt := fmt.Sprintf(contentUserPrompt,
		convo.Text,
		psych.CommunicationStyle, psych.ConversationStage, psych.ResistanceLevel,
		strat.Approach, strat.ConversationGoal, strat.AppointmentStrategy,
		strat.PropertyFocus, strat.ValueProposition, strat.UrgencyTactic, strat.NextStepGuidance,
		summarizeProperties(intel.Properties),
		marketContext(intel, strat),
		floorPlanContext(intel, strat),
	)

	temp := 0.7
	text, usage, err := callModelJSON(ctx, aiClient, anthropic.MessageRequest{
		Model:       aiCfg.SonnetModel,
		MaxTokens:   1024,
		System:      anthropic.BuildCachedSystemBlocks(contentSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("content: model call failed, using generic greeting",
			zap.String("lead_id", convo.LeadID),
			zap.Error(err),
		)
		return model.DefaultDraftContent(), fallbackOutcome(err)
	}

	draft := parseDraft(text)
	attachFloorPlans(&draft, intel, strat)
	return draft, successOutcome(usage)
}

func parseDraft(text string) model.DraftContent {
	var raw struct {
		Message          string   `json:"message"`
		Tone             string   `json:"tone"`
		AppointmentCall  string   `json:"appointment_call"`
		PropertyMentions []string `json:"property_mentions"`
		MarketInsights   []string `json:"market_insights"`
		TrustSignals     []string `json:"trust_signals"`
	}

	draft := model.DefaultDraftContent()
	draft.Fallback = false

	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return draft
	}

	if raw.Message != "" {
		draft.Message = raw.Message
	}
	if raw.Tone != "" {
		draft.Tone = raw.Tone
	}
	switch model.AppointmentCall(raw.AppointmentCall) {
	case model.CallNone, model.CallSoft, model.CallDirect:
		draft.AppointmentCall = model.AppointmentCall(raw.AppointmentCall)
	}
	if raw.PropertyMentions != nil {
		draft.PropertyMentions = raw.PropertyMentions
	}
	if raw.MarketInsights != nil {
		draft.MarketInsights = raw.MarketInsights
	}
	if raw.TrustSignals != nil {
		draft.TrustSignals = raw.TrustSignals
	}

	return draft
}

// attachFloorPlans copies the intelligence bundle onto the draft when the
// strategy asked for floor plans and stage 2 produced any.
func attachFloorPlans(draft *model.DraftContent, intel model.IntelligencePackage, strat model.Strategy) {
	if !strat.UseFloorPlans || intel.FloorPlans == nil {
		return
	}
	draft.FloorPlanImages = intel.FloorPlans.Images
}

func marketContext(intel model.IntelligencePackage, strat model.Strategy) string {
	if !strat.UseMarketData || intel.Market == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nMarket context:\n")
	for _, s := range intel.Market.Snippets {
		fmt.Fprintf(&sb, "- %s: %s\n", s.Title, s.Snippet)
	}
	return sb.String()
}

func floorPlanContext(intel model.IntelligencePackage, strat model.Strategy) string {
	if !strat.UseFloorPlans || intel.FloorPlans == nil {
		return ""
	}
	return fmt.Sprintf("\nFloor plans will be attached for %d image(s); mention them naturally.\n", len(intel.FloorPlans.Images))
}
