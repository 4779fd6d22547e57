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

const psychologySystemPrompt = `You are a sales psychologist analyzing a property lead's messages. Assess the lead's communication style, resistance, urgency and buying readiness. Respond with a valid JSON object only:
{"communication_style": "direct|polite|analytical|casual|skeptical", "resistance_patterns": ["<pattern>"], "urgency_score": <0.0-1.0>, "resistance_level": "low|medium|high", "buying_signals": ["<signal>"], "pain_points": ["<pain point>"], "psychological_profile": "<2-3 sentence read>", "recommended_approach": "<1 sentence>", "appointment_readiness": "cold|warming_up|ready|hot", "next_best_action": "<1 sentence>"}`

const psychologyUserPrompt = `Lead profile: source=%s, status=%s, budget=%.0f, stated intent=%q

Recent conversation (oldest first):
%s

Latest message from lead:
%s`

// AnalyzePsychology implements stage 1: a behavioral read of the lead from
// the last five turns plus the current message. The conversation stage is
// always overlaid by the deterministic heuristic so downstream routing never
// depends on the model for it.
func AnalyzePsychology(ctx context.Context, convo model.ConversationContext, h *Heuristics, aiClient anthropic.Client, aiCfg config.AnthropicConfig) (model.PsychologyProfile, StageOutcome) {
	prompt := fmt.Sprintf(psychologyUserPrompt,
		convo.Lead.Source, convo.Lead.Status, convo.Lead.Budget, convo.Lead.Intent,
		formatHistory(convo.RecentHistory(5)),
		convo.Text,
	)

	temp := 0.3
	text, usage, err := callModelJSON(ctx, aiClient, anthropic.MessageRequest{
		Model:       aiCfg.HaikuModel,
		MaxTokens:   1024,
		System:      anthropic.BuildCachedSystemBlocks(psychologySystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("psychology: model call failed, using neutral profile",
			zap.String("lead_id", convo.LeadID),
			zap.Error(err),
		)
		profile := model.DefaultPsychologyProfile()
		profile.ConversationStage = detectConversationStage(convo, h)
		return profile, fallbackOutcome(err)
	}

	profile := parsePsychology(text)
	profile.ConversationStage = detectConversationStage(convo, h)
	return profile, successOutcome(usage)
}

// parsePsychology decodes the model output, defaulting each missing or
// invalid field individually rather than discarding the whole object.
func parsePsychology(text string) model.PsychologyProfile {
	var raw struct {
		CommunicationStyle   string   `json:"communication_style"`
		ResistancePatterns   []string `json:"resistance_patterns"`
		UrgencyScore         *float64 `json:"urgency_score"`
		ResistanceLevel      string   `json:"resistance_level"`
		BuyingSignals        []string `json:"buying_signals"`
		PainPoints           []string `json:"pain_points"`
		PsychologicalProfile string   `json:"psychological_profile"`
		RecommendedApproach  string   `json:"recommended_approach"`
		AppointmentReadiness string   `json:"appointment_readiness"`
		NextBestAction       string   `json:"next_best_action"`
	}

	defaults := model.DefaultPsychologyProfile()
	profile := defaults
	profile.Fallback = false

	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		// Treat a parse failure on otherwise-delivered content the same as
		// an empty object: every field defaults.
		return profile
	}

	if style := model.CommunicationStyle(strings.ToLower(raw.CommunicationStyle)); validStyle(style) {
		profile.CommunicationStyle = style
	}
	if raw.ResistancePatterns != nil {
		profile.ResistancePatterns = raw.ResistancePatterns
	}
	if raw.UrgencyScore != nil && *raw.UrgencyScore >= 0 && *raw.UrgencyScore <= 1 {
		profile.UrgencyScore = *raw.UrgencyScore
	}
	switch model.ResistanceLevel(strings.ToLower(raw.ResistanceLevel)) {
	case model.ResistanceLow, model.ResistanceMedium, model.ResistanceHigh:
		profile.ResistanceLevel = model.ResistanceLevel(strings.ToLower(raw.ResistanceLevel))
	}
	if raw.BuyingSignals != nil {
		profile.BuyingSignals = raw.BuyingSignals
	}
	if raw.PainPoints != nil {
		profile.PainPoints = raw.PainPoints
	}
	if raw.PsychologicalProfile != "" {
		profile.PsychologicalProfile = raw.PsychologicalProfile
	}
	if raw.RecommendedApproach != "" {
		profile.RecommendedApproach = raw.RecommendedApproach
	}
	switch raw.AppointmentReadiness {
	case "cold", "warming_up", "ready", "hot":
		profile.AppointmentReadiness = raw.AppointmentReadiness
	}
	if raw.NextBestAction != "" {
		profile.NextBestAction = raw.NextBestAction
	}

	return profile
}

func validStyle(s model.CommunicationStyle) bool {
	for _, v := range model.AllCommunicationStyles() {
		if v == s {
			return true
		}
	}
	return false
}

// detectConversationStage classifies the funnel stage from keywords and turn
// count. Deliberately independent of the model call so stage routing stays
// stable when inference degrades.
func detectConversationStage(convo model.ConversationContext, h *Heuristics) model.ConversationStage {
	if containsAny(convo.Text, h.AppointmentKeywords) {
		return model.StageQualified
	}
	if containsAny(convo.Text, h.ObjectionKeywords) {
		return model.StageObjecting
	}
	if containsAny(convo.Text, h.InterestKeywords) || recentHistoryMentions(convo, "budget") {
		return model.StageInterested
	}

	switch turns := convo.TurnCount(); {
	case turns <= 2:
		return model.StageInitial
	case turns <= 5:
		return model.StageBrowsing
	default:
		return model.StageInterested
	}
}

func recentHistoryMentions(convo model.ConversationContext, keyword string) bool {
	for _, h := range convo.RecentHistory(5) {
		if strings.Contains(strings.ToLower(h.Message), keyword) {
			return true
		}
	}
	return false
}

func formatHistory(history []model.HistoryMessage) string {
	if len(history) == 0 {
		return "(no prior messages)"
	}
	var sb strings.Builder
	for _, h := range history {
		fmt.Fprintf(&sb, "[%s] %s\n", h.Sender, h.Message)
	}
	return sb.String()
}
