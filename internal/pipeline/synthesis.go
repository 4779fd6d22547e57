package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

const synthesisSystemPrompt = `You are the final quality gate for outbound property-consultancy replies in Singapore. Validate the draft against the strategy, the lead's psychology and the data quality, fixing the message if needed. Respond with a valid JSON object only:
{"message": "<final reply text>", "quality_score": <0.0-1.0>, "appointment_intent": true|false, "fact_checked": true|false, "culturally_appropriate": true|false, "lead_updates": {"<field>": "<value>"}, "confidence_level": "low|medium|high"}
appointment_intent is true only when the lead has clearly signalled willingness to meet. fact_checked reflects whether property claims in the message are backed by verified data.`

const synthesisUserPrompt = `Draft reply:
%s
(tone=%s, appointment call=%s)

Strategy: approach=%s, appointment=%s, priority=%s
Psychology: stage=%s, readiness=%s, resistance=%s
Data: %d properties, aggregate confidence %.2f

Lead's latest message:
%s`

// SynthesizeResponse implements stage 5: validates and finalizes the draft.
// The consultant briefing is assembled locally from prior stage outputs, not
// by the model.
func SynthesizeResponse(
	ctx context.Context,
	convo model.ConversationContext,
	psych model.PsychologyProfile,
	intel model.IntelligencePackage,
	strat model.Strategy,
	draft model.DraftContent,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
) (model.FinalResponse, StageOutcome) {
	prompt := fmt.Sprintf(synthesisUserPrompt,
		draft.Message, draft.Tone, draft.AppointmentCall,
		strat.Approach, strat.AppointmentStrategy, strat.ConversionPriority,
		psych.ConversationStage, psych.AppointmentReadiness, psych.ResistanceLevel,
		len(intel.Properties), intel.DataConfidence,
		convo.Text,
	)

	temp := 0.2
	text, usage, err := callModelJSON(ctx, aiClient, anthropic.MessageRequest{
		Model:       aiCfg.SonnetModel,
		MaxTokens:   1024,
		System:      anthropic.BuildCachedSystemBlocks(synthesisSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("synthesis: model call failed, passing draft through",
			zap.String("lead_id", convo.LeadID),
			zap.Error(err),
		)
		return model.PassthroughResponse(draft), fallbackOutcome(err)
	}

	final := parseFinal(text, draft)
	final.FloorPlanImages = draft.FloorPlanImages
	if final.AppointmentIntent {
		final.ConsultantBriefing = buildConsultantBriefing(convo, psych, intel, strat)
	}
	return final, successOutcome(usage)
}

func parseFinal(text string, draft model.DraftContent) model.FinalResponse {
	var raw struct {
		Message               string         `json:"message"`
		QualityScore          *float64       `json:"quality_score"`
		AppointmentIntent     bool           `json:"appointment_intent"`
		FactChecked           bool           `json:"fact_checked"`
		CulturallyAppropriate *bool          `json:"culturally_appropriate"`
		LeadUpdates           map[string]any `json:"lead_updates"`
		ConfidenceLevel       string         `json:"confidence_level"`
	}

	final := model.FinalResponse{
		Message:               draft.Message,
		QualityScore:          0.5,
		CulturallyAppropriate: true,
		ConfidenceLevel:       model.ConfidenceMedium,
	}

	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return final
	}

	if raw.Message != "" {
		final.Message = raw.Message
	}
	if raw.QualityScore != nil && *raw.QualityScore >= 0 && *raw.QualityScore <= 1 {
		final.QualityScore = *raw.QualityScore
	}
	final.AppointmentIntent = raw.AppointmentIntent
	final.FactChecked = raw.FactChecked
	if raw.CulturallyAppropriate != nil {
		final.CulturallyAppropriate = *raw.CulturallyAppropriate
	}
	final.LeadUpdates = raw.LeadUpdates
	switch model.ConfidenceLevel(raw.ConfidenceLevel) {
	case model.ConfidenceLow, model.ConfidenceMedium, model.ConfidenceHigh:
		final.ConfidenceLevel = model.ConfidenceLevel(raw.ConfidenceLevel)
	}

	return final
}

// buildConsultantBriefing snapshots the run for the human consultant taking
// over: lead profile, requirements read, top three properties with their
// verification flags, and the plan notes.
func buildConsultantBriefing(
	convo model.ConversationContext,
	psych model.PsychologyProfile,
	intel model.IntelligencePackage,
	strat model.Strategy,
) *model.ConsultantBriefing {
	briefing := &model.ConsultantBriefing{
		LeadSummary: fmt.Sprintf("source=%s, status=%s, budget=$%.0f, style=%s, stage=%s",
			convo.Lead.Source, convo.Lead.Status, convo.Lead.Budget,
			psych.CommunicationStyle, psych.ConversationStage),
		Requirements: convo.Lead.Intent,
		StrategyNotes: fmt.Sprintf("approach=%s, appointment=%s, focus=%s",
			strat.Approach, strat.AppointmentStrategy, strat.PropertyFocus),
		ConversionNote: psych.NextBestAction,
	}
	if briefing.Requirements == "" {
		briefing.Requirements = convo.Text
	}

	for i, rec := range intel.Properties {
		if i >= 3 {
			break
		}
		verified := rec.Verification != nil && rec.Verification.Verified
		briefing.RecommendedProperties = append(briefing.RecommendedProperties, model.RecommendedProperty{
			ProjectName: rec.ProjectName,
			District:    rec.District,
			PriceFrom:   rec.PriceFrom,
			Verified:    verified,
		})
	}

	return briefing
}
