package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/monitoring"
	"github.com/sells-group/lead-engine/internal/store"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

// blockingModelClient hangs every call until the context is cancelled.
type blockingModelClient struct{}

func (blockingModelClient) CreateMessage(ctx context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// Stage responses in call order: psychology, one verification, strategy,
// content, synthesis.
func happyPathResponses() []string {
	return []string{
		`{"communication_style": "direct", "urgency_score": 0.9, "resistance_level": "low", "appointment_readiness": "hot", "psychological_profile": "ready buyer"}`,
		`{"field_accuracy": {"price_from": true}, "confidence": 0.9}`,
		`{"approach": "direct", "appointment_strategy": "direct_ask", "use_floor_plans": false, "use_market_data": true, "conversion_priority": "high"}`,
		`{"message": "Aurora Residences fits perfectly - shall we meet tomorrow at the showflat?", "tone": "confident", "appointment_call": "direct", "property_mentions": ["Aurora Residences"]}`,
		`{"message": "Aurora Residences fits perfectly - shall we meet tomorrow at the showflat?", "quality_score": 0.9, "appointment_intent": true, "fact_checked": true, "culturally_appropriate": true, "confidence_level": "high"}`,
	}
}

func newTestPipeline(deps Deps) *Pipeline {
	if deps.Anthropic == (config.AnthropicConfig{}) {
		deps.Anthropic = testAICfg
	}
	if deps.Pipeline == (config.PipelineConfig{}) {
		deps.Pipeline = testPipeCfg
	}
	return New(deps)
}

func TestProcessMessage_EndToEnd(t *testing.T) {
	t.Parallel()

	recorder := monitoring.NewRecorder()
	p := newTestPipeline(Deps{
		AI:      &StubModelClient{Responses: happyPathResponses()},
		Catalog: &StubCatalogClient{Properties: []model.PropertyRecord{testProperty("p1", "Aurora Residences")}},
		Search:  &StubSearchClient{Results: testSnippets()},
		Metrics: recorder,
	})

	convo := model.ConversationContext{
		LeadID:   "lead-1",
		SenderID: "sender-1",
		Text:     "I'm looking for a 3-bedroom condo in district 10, budget $1.5M, can we meet tomorrow?",
		Lead:     model.LeadProfile{Source: model.LeadSourceFacebook, Status: model.LeadStatusNew, Budget: 1_500_000},
	}

	result := p.ProcessMessage(context.Background(), convo)

	assert.True(t, result.Success)
	assert.True(t, result.AppointmentIntent)
	require.NotNil(t, result.ConsultantBriefing)
	assert.NotEmpty(t, result.ConsultantBriefing.RecommendedProperties)
	assert.InDelta(t, 0.9, result.QualityScore, 1e-9)
	assert.GreaterOrEqual(t, result.ProcessingTimeMs, int64(0))

	// Every stage output is exposed for observability.
	assert.Equal(t, model.StageQualified, result.Layers.Psychology.ConversationStage)
	require.Len(t, result.Layers.Intelligence.Properties, 1)
	assert.True(t, result.Layers.Intelligence.Properties[0].Verification.Verified)
	assert.Equal(t, model.AppointmentDirectAsk, result.Layers.Strategy.AppointmentStrategy)
	assert.Equal(t, model.CallDirect, result.Layers.Content.AppointmentCall)
	assert.True(t, result.Layers.Synthesis.FactChecked)

	snap := recorder.Snapshot()
	assert.Equal(t, 1, snap.Runs)
	assert.Equal(t, 1, snap.AppointmentsBooked)
	assert.Equal(t, 1, snap.LeadsQualified)
	assert.Equal(t, 0, snap.GlobalFallbacks)
	for _, stage := range []string{StagePsychology, StageIntelligence, StageStrategy, StageContent, StageSynthesis} {
		st, ok := snap.Stages[stage]
		require.True(t, ok, "stage %s not recorded", stage)
		assert.Equal(t, 1, st.Attempts)
		assert.Equal(t, 1, st.Successes)
	}
}

func TestProcessMessage_TotalFailure(t *testing.T) {
	t.Parallel()

	recorder := monitoring.NewRecorder()
	p := newTestPipeline(Deps{
		AI:      &StubModelClient{Err: eris.New("api down")},
		Catalog: &StubCatalogClient{Err: eris.New("db down")},
		Search:  &StubSearchClient{Err: eris.New("search down")},
		Metrics: recorder,
	})

	result := p.ProcessMessage(context.Background(), model.ConversationContext{
		LeadID: "lead-1",
		Text:   "hello",
	})

	assert.False(t, result.Success)
	assert.InDelta(t, 0.3, result.QualityScore, 1e-9)
	assert.False(t, result.AppointmentIntent)
	assert.Equal(t, DefaultHeuristics().GenericReply, result.Response)
	assert.Nil(t, result.ConsultantBriefing)

	snap := recorder.Snapshot()
	assert.Equal(t, 1, snap.Runs)
	assert.Equal(t, 1, snap.GlobalFallbacks)
}

func TestProcessMessage_BudgetTimeout(t *testing.T) {
	t.Parallel()

	// A model API that never answers must not hang the run past the
	// wall-clock budget.
	cfg := testPipeCfg
	cfg.BudgetSecs = 1
	p := newTestPipeline(Deps{
		AI:       blockingModelClient{},
		Catalog:  &StubCatalogClient{},
		Search:   &StubSearchClient{},
		Pipeline: cfg,
	})

	start := time.Now()
	result := p.ProcessMessage(context.Background(), model.ConversationContext{
		LeadID: "lead-1",
		Text:   "hello, any new launches?",
	})
	elapsed := time.Since(start)

	require.NotNil(t, result)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)

	// Every model-backed stage degrades, but the empty catalog lookup
	// still succeeds, so the run is a degraded success rather than the
	// generic reply.
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Response)
	assert.True(t, result.Layers.Psychology.Fallback)
	assert.False(t, result.Layers.Intelligence.Fallback)
	assert.True(t, result.Layers.Strategy.Fallback)
	assert.True(t, result.Layers.Content.Fallback)
	assert.True(t, result.Layers.Synthesis.Fallback)
	assert.InDelta(t, 0.5, result.QualityScore, 1e-9)
}

func TestProcessMessage_PartialFallbackStillSucceeds(t *testing.T) {
	t.Parallel()

	// Catalog down, everything else healthy: stage 2 degrades, the run does not.
	responses := []string{
		`{"communication_style": "direct"}`,
		`{"approach": "educational"}`,
		`{"message": "Happy to help you shortlist options!", "tone": "warm"}`,
		`{"message": "Happy to help you shortlist options!", "quality_score": 0.75}`,
	}
	p := newTestPipeline(Deps{
		AI:      &StubModelClient{Responses: responses},
		Catalog: &StubCatalogClient{Err: eris.New("db down")},
		Search:  &StubSearchClient{},
	})

	result := p.ProcessMessage(context.Background(), model.ConversationContext{
		LeadID: "lead-1",
		Text:   "looking for a condo",
	})

	assert.True(t, result.Success)
	assert.True(t, result.Layers.Intelligence.Fallback)
	assert.False(t, result.Layers.Content.Fallback)
	assert.InDelta(t, 0.75, result.QualityScore, 1e-9)
}

func TestProcessMessage_PersistsRunAndStages(t *testing.T) {
	t.Parallel()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))

	p := newTestPipeline(Deps{
		AI:      &StubModelClient{Responses: happyPathResponses()},
		Catalog: &StubCatalogClient{Properties: []model.PropertyRecord{testProperty("p1", "Aurora Residences")}},
		Search:  &StubSearchClient{Results: testSnippets()},
		Store:   st,
	})

	result := p.ProcessMessage(context.Background(), model.ConversationContext{
		LeadID: "lead-42",
		Text:   "3-bedroom condo in district 10, can we meet?",
		Lead:   model.LeadProfile{Budget: 1_500_000},
	})
	require.NotEmpty(t, result.RunID)

	run, err := st.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "lead-42", run.LeadID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.True(t, run.Result.AppointmentBooked)
	assert.Len(t, run.Stages, 5)
	for _, stage := range run.Stages {
		assert.Equal(t, model.StageStatusComplete, stage.Status)
	}
}

func TestNew_DefaultsNilDeps(t *testing.T) {
	t.Parallel()

	p := New(Deps{AI: &StubModelClient{}, Catalog: &StubCatalogClient{}, Search: &StubSearchClient{}})

	assert.NotNil(t, p.metrics)
	assert.NotNil(t, p.h)

	// A zero-value config must not verify every property or qualify
	// every lead.
	assert.InDelta(t, 0.7, p.pipeCfg.VerifiedThreshold, 1e-9)
	assert.InDelta(t, 0.7, p.pipeCfg.QualifiedThreshold, 1e-9)
}

func TestGenericResult_SchemaComplete(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(Deps{AI: &StubModelClient{}, Catalog: &StubCatalogClient{}, Search: &StubSearchClient{}})
	result := p.genericResult()

	// Fallback layers are schema-identical to success layers.
	assert.NotEmpty(t, result.Layers.Psychology.CommunicationStyle)
	assert.NotNil(t, result.Layers.Intelligence.Properties)
	assert.NotEmpty(t, result.Layers.Strategy.Approach)
	assert.NotEmpty(t, result.Layers.Content.Message)
	assert.NotEmpty(t, result.Layers.Synthesis.Message)
	assert.True(t, result.Layers.Synthesis.Fallback)
}
