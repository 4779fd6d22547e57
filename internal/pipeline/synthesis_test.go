package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func TestSynthesizeResponse_AppointmentIntent(t *testing.T) {
	t.Parallel()

	stub := &StubModelClient{Responses: []string{`{
		"message": "Great - how about Saturday 2pm at the showflat?",
		"quality_score": 0.85,
		"appointment_intent": true,
		"fact_checked": true,
		"culturally_appropriate": true,
		"lead_updates": {"status": "qualified"},
		"confidence_level": "high"
	}`}}

	convo := model.ConversationContext{
		LeadID: "lead-1",
		Text:   "can we meet tomorrow?",
		Lead:   model.LeadProfile{Source: model.LeadSourceFacebook, Status: model.LeadStatusEngaged, Budget: 1_500_000},
	}
	props := make([]model.PropertyRecord, 4)
	for i := range props {
		props[i] = testProperty(fmt.Sprintf("p%d", i), fmt.Sprintf("Project %d", i))
	}
	props[0].Verification = &model.Verification{Verified: true, Confidence: 0.9}
	intel := model.IntelligencePackage{Properties: props, DataConfidence: 0.8}

	draft := model.DraftContent{Message: "draft text", Tone: "warm"}
	final, outcome := SynthesizeResponse(context.Background(), convo,
		model.DefaultPsychologyProfile(), intel, model.DefaultStrategy(), draft, stub, testAICfg)

	assert.False(t, outcome.Fallback)
	assert.True(t, final.AppointmentIntent)
	assert.True(t, final.FactChecked)
	assert.InDelta(t, 0.85, final.QualityScore, 1e-9)
	assert.Equal(t, model.ConfidenceHigh, final.ConfidenceLevel)
	assert.Equal(t, "qualified", final.LeadUpdates["status"])

	require.NotNil(t, final.ConsultantBriefing)
	assert.Len(t, final.ConsultantBriefing.RecommendedProperties, 3)
	assert.True(t, final.ConsultantBriefing.RecommendedProperties[0].Verified)
	assert.Contains(t, final.ConsultantBriefing.LeadSummary, "facebook")
	// No stated intent, so requirements fall back to the message itself.
	assert.Equal(t, convo.Text, final.ConsultantBriefing.Requirements)
}

func TestSynthesizeResponse_NoIntentNoBriefing(t *testing.T) {
	t.Parallel()

	stub := &StubModelClient{Responses: []string{`{
		"message": "Sure, let me know if you'd like more details.",
		"quality_score": 0.7,
		"appointment_intent": false
	}`}}

	final, _ := SynthesizeResponse(context.Background(), model.ConversationContext{LeadID: "lead-1"},
		model.DefaultPsychologyProfile(), model.DefaultIntelligencePackage(),
		model.DefaultStrategy(), model.DefaultDraftContent(), stub, testAICfg)

	assert.False(t, final.AppointmentIntent)
	assert.Nil(t, final.ConsultantBriefing)
}

func TestSynthesizeResponse_ModelError(t *testing.T) {
	t.Parallel()

	stub := &StubModelClient{Err: eris.New("api down")}

	draft := model.DraftContent{
		Message: "draft survives",
		FloorPlanImages: []model.FloorPlanImage{
			{PropertyID: "p1", ImageURL: "https://img/1"},
		},
	}
	final, outcome := SynthesizeResponse(context.Background(), model.ConversationContext{LeadID: "lead-1"},
		model.DefaultPsychologyProfile(), model.DefaultIntelligencePackage(),
		model.DefaultStrategy(), draft, stub, testAICfg)

	assert.True(t, outcome.Fallback)
	assert.True(t, final.Fallback)
	// The draft passes through unmodified.
	assert.Equal(t, "draft survives", final.Message)
	assert.InDelta(t, 0.5, final.QualityScore, 1e-9)
	assert.False(t, final.AppointmentIntent)
	assert.Len(t, final.FloorPlanImages, 1)
}

func TestParseFinal_DefaultsKeepDraftMessage(t *testing.T) {
	t.Parallel()

	draft := model.DraftContent{Message: "original draft"}
	final := parseFinal("not valid json", draft)

	assert.Equal(t, "original draft", final.Message)
	assert.InDelta(t, 0.5, final.QualityScore, 1e-9)
	assert.True(t, final.CulturallyAppropriate)
	assert.Equal(t, model.ConfidenceMedium, final.ConfidenceLevel)
}

func TestParseFinal_QualityScoreOutOfRange(t *testing.T) {
	t.Parallel()

	final := parseFinal(`{"message": "hi", "quality_score": 7.0}`, model.DraftContent{})
	assert.InDelta(t, 0.5, final.QualityScore, 1e-9)
}
