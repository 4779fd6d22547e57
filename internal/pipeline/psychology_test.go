package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

var testAICfg = config.AnthropicConfig{
	HaikuModel:  "claude-haiku-4-5-20251001",
	SonnetModel: "claude-sonnet-4-5-20250929",
}

func TestAnalyzePsychology_Success(t *testing.T) {
	t.Parallel()

	stub := &StubModelClient{Responses: []string{`{
		"communication_style": "analytical",
		"resistance_patterns": ["price sensitivity"],
		"urgency_score": 0.8,
		"resistance_level": "low",
		"buying_signals": ["asked about viewing"],
		"pain_points": ["current flat too small"],
		"psychological_profile": "data-driven upgrader",
		"recommended_approach": "lead with numbers",
		"appointment_readiness": "ready",
		"next_best_action": "offer a viewing slot"
	}`}}

	convo := model.ConversationContext{
		LeadID: "lead-1",
		Text:   "Can we book a viewing this weekend?",
	}

	profile, outcome := AnalyzePsychology(context.Background(), convo, DefaultHeuristics(), stub, testAICfg)

	assert.False(t, outcome.Fallback)
	assert.False(t, profile.Fallback)
	assert.Equal(t, model.StyleAnalytical, profile.CommunicationStyle)
	assert.Equal(t, model.ResistanceLow, profile.ResistanceLevel)
	assert.InDelta(t, 0.8, profile.UrgencyScore, 1e-9)
	assert.Equal(t, "ready", profile.AppointmentReadiness)
	// Stage comes from the heuristic, never from the model.
	assert.Equal(t, model.StageQualified, profile.ConversationStage)

	require.Len(t, stub.Calls, 1)
	assert.Equal(t, testAICfg.HaikuModel, stub.Calls[0].Model)
}

func TestAnalyzePsychology_ModelError(t *testing.T) {
	t.Parallel()

	stub := &StubModelClient{Err: eris.New("api down")}
	convo := model.ConversationContext{LeadID: "lead-1", Text: "hello"}

	profile, outcome := AnalyzePsychology(context.Background(), convo, DefaultHeuristics(), stub, testAICfg)

	assert.True(t, outcome.Fallback)
	require.Error(t, outcome.Err)
	assert.True(t, profile.Fallback)
	assert.Equal(t, model.StylePolite, profile.CommunicationStyle)
	assert.Equal(t, model.ResistanceMedium, profile.ResistanceLevel)
	assert.Equal(t, "warming_up", profile.AppointmentReadiness)
	// Heuristic stage still applies on the fallback path.
	assert.Equal(t, model.StageInitial, profile.ConversationStage)
}

func TestAnalyzePsychology_MalformedJSON(t *testing.T) {
	t.Parallel()

	stub := &StubModelClient{Responses: []string{"sorry, I cannot produce JSON"}}
	convo := model.ConversationContext{LeadID: "lead-1", Text: "hello"}

	profile, outcome := AnalyzePsychology(context.Background(), convo, DefaultHeuristics(), stub, testAICfg)

	// Delivered-but-unparseable content defaults every field without
	// counting as a stage fallback.
	assert.False(t, outcome.Fallback)
	assert.False(t, profile.Fallback)
	assert.Equal(t, model.StylePolite, profile.CommunicationStyle)
	assert.InDelta(t, 0.5, profile.UrgencyScore, 1e-9)
}

func TestParsePsychology_InvalidFieldValues(t *testing.T) {
	t.Parallel()

	profile := parsePsychology(`{
		"communication_style": "telepathic",
		"urgency_score": 3.5,
		"resistance_level": "impenetrable",
		"appointment_readiness": "boiling"
	}`)

	assert.Equal(t, model.StylePolite, profile.CommunicationStyle)
	assert.InDelta(t, 0.5, profile.UrgencyScore, 1e-9)
	assert.Equal(t, model.ResistanceMedium, profile.ResistanceLevel)
	assert.Equal(t, "warming_up", profile.AppointmentReadiness)
}

func TestDetectConversationStage(t *testing.T) {
	t.Parallel()

	h := DefaultHeuristics()

	leadTurns := func(n int) []model.HistoryMessage {
		msgs := make([]model.HistoryMessage, 0, n)
		for i := 0; i < n; i++ {
			msgs = append(msgs, model.HistoryMessage{
				Sender:    "lead",
				Message:   "just browsing around",
				Timestamp: time.Now(),
			})
		}
		return msgs
	}

	tests := []struct {
		name  string
		convo model.ConversationContext
		want  model.ConversationStage
	}{
		{
			name:  "appointment keyword wins",
			convo: model.ConversationContext{Text: "can we schedule a consultation"},
			want:  model.StageQualified,
		},
		{
			name:  "objection keyword",
			convo: model.ConversationContext{Text: "honestly it's too expensive for me"},
			want:  model.StageObjecting,
		},
		{
			name:  "interest keyword",
			convo: model.ConversationContext{Text: "tell me more about this project"},
			want:  model.StageInterested,
		},
		{
			name: "history mentions budget",
			convo: model.ConversationContext{
				Text: "ok",
				History: []model.HistoryMessage{
					{Sender: "lead", Message: "my budget is around 1.2m"},
				},
			},
			want: model.StageInterested,
		},
		{
			name:  "first message is initial",
			convo: model.ConversationContext{Text: "hi"},
			want:  model.StageInitial,
		},
		{
			name:  "few turns is browsing",
			convo: model.ConversationContext{Text: "ok thanks", History: leadTurns(3)},
			want:  model.StageBrowsing,
		},
		{
			name:  "many turns is interested",
			convo: model.ConversationContext{Text: "ok thanks", History: leadTurns(6)},
			want:  model.StageInterested,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectConversationStage(tt.convo, h))
		})
	}
}
