// Package pipeline turns one inbound lead message into one outbound reply
// through five sequential model-backed stages. Every stage degrades to a
// deterministic default instead of failing, so a run always produces a reply.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/catalog"
	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/monitoring"
	"github.com/sells-group/lead-engine/internal/store"
	"github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/websearch"
)

// fallbackQualityScore is assigned when the whole run collapses to the
// generic reply.
const fallbackQualityScore = 0.3

// storeWriteTimeout bounds the best-effort persistence writes that happen
// after the run budget may already be spent.
const storeWriteTimeout = 5 * time.Second

// Deps bundles everything a Pipeline needs. Store and Metrics may be nil;
// persistence and telemetry are then skipped.
type Deps struct {
	AI         anthropic.Client
	Catalog    catalog.Client
	Search     websearch.Client
	Store      store.Store
	Metrics    monitoring.Sink
	Heuristics *Heuristics
	Anthropic  config.AnthropicConfig
	Pipeline   config.PipelineConfig
}

// Pipeline orchestrates the five stages for one deployment. Safe for
// concurrent use; all per-run state lives on the stack.
type Pipeline struct {
	ai      anthropic.Client
	catalog catalog.Client
	search  websearch.Client
	store   store.Store
	metrics monitoring.Sink
	h       *Heuristics
	aiCfg   config.AnthropicConfig
	pipeCfg config.PipelineConfig
}

// New wires a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		ai:      deps.AI,
		catalog: deps.Catalog,
		search:  deps.Search,
		store:   deps.Store,
		metrics: deps.Metrics,
		h:       deps.Heuristics,
		aiCfg:   deps.Anthropic,
		pipeCfg: deps.Pipeline,
	}
	if p.metrics == nil {
		p.metrics = monitoring.NopSink{}
	}
	if p.h == nil {
		p.h = DefaultHeuristics()
	}
	if p.pipeCfg.VerifiedThreshold <= 0 {
		p.pipeCfg.VerifiedThreshold = 0.7
	}
	if p.pipeCfg.QualifiedThreshold <= 0 {
		p.pipeCfg.QualifiedThreshold = 0.7
	}
	return p
}

// ProcessMessage runs the full five-stage pipeline for one inbound message.
// It never returns an error: total failure resolves to a generic reply with
// a low quality score inside the wall-clock budget.
func (p *Pipeline) ProcessMessage(ctx context.Context, convo model.ConversationContext) *model.PipelineResult {
	start := time.Now()

	budget := time.Duration(p.pipeCfg.BudgetSecs) * time.Second
	if budget <= 0 {
		budget = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	runID := p.beginRun(runCtx, convo.LeadID)

	result, fallbackUsed, err := p.run(runCtx, runID, convo)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		zap.L().Error("pipeline: run failed, serving generic reply",
			zap.String("lead_id", convo.LeadID),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		result = p.genericResult()
		fallbackUsed = true
	}
	result.RunID = runID
	result.ProcessingTimeMs = elapsed

	outcome := model.RunOutcome{
		Success:             err == nil,
		ProcessingTimeMs:    elapsed,
		AppointmentBooked:   result.AppointmentIntent,
		FactChecked:         result.Layers.Synthesis.FactChecked,
		FactCheckAccuracy:   result.Layers.Intelligence.DataConfidence,
		FloorPlansDelivered: len(result.FloorPlanImages),
		LeadQualified:       result.QualityScore > p.pipeCfg.QualifiedThreshold,
		FallbackUsed:        fallbackUsed,
	}
	p.metrics.RecordRunResult(outcome)

	status := model.RunStatusComplete
	if err != nil {
		status = model.RunStatusDegraded
	}
	p.finishRun(runID, status, &outcome)

	zap.L().Info("pipeline: run finished",
		zap.String("lead_id", convo.LeadID),
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int64("elapsed_ms", elapsed),
		zap.Float64("quality", result.QualityScore),
		zap.Bool("appointment_intent", result.AppointmentIntent),
		zap.Bool("fallback_used", fallbackUsed),
	)

	return result
}

// run executes the five stages in order. Stages never error; the returned
// error only reflects a panic somewhere beneath, converted here so the caller
// can serve the generic reply.
func (p *Pipeline) run(ctx context.Context, runID string, convo model.ConversationContext) (result *model.PipelineResult, fallbackUsed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic: %v", r)
		}
	}()

	psych, psychOut := runStage(p, ctx, runID, StagePsychology, p.aiCfg.HaikuModel,
		func(ctx context.Context) (model.PsychologyProfile, StageOutcome) {
			return AnalyzePsychology(ctx, convo, p.h, p.ai, p.aiCfg)
		})

	intel, intelOut := runStage(p, ctx, runID, StageIntelligence, p.aiCfg.HaikuModel,
		func(ctx context.Context) (model.IntelligencePackage, StageOutcome) {
			return GatherIntelligence(ctx, convo, p.h, p.catalog, p.search, p.ai, p.aiCfg, p.pipeCfg)
		})

	strat, stratOut := runStage(p, ctx, runID, StageStrategy, p.aiCfg.SonnetModel,
		func(ctx context.Context) (model.Strategy, StageOutcome) {
			return PlanStrategy(ctx, convo, psych, intel, p.ai, p.aiCfg)
		})

	draft, draftOut := runStage(p, ctx, runID, StageContent, p.aiCfg.SonnetModel,
		func(ctx context.Context) (model.DraftContent, StageOutcome) {
			return GenerateContent(ctx, convo, psych, intel, strat, p.ai, p.aiCfg)
		})

	final, finalOut := runStage(p, ctx, runID, StageSynthesis, p.aiCfg.SonnetModel,
		func(ctx context.Context) (model.FinalResponse, StageOutcome) {
			return SynthesizeResponse(ctx, convo, psych, intel, strat, draft, p.ai, p.aiCfg)
		})

	fallbackUsed = psychOut.Fallback || intelOut.Fallback || stratOut.Fallback ||
		draftOut.Fallback || finalOut.Fallback

	// Every stage degrading means nothing model-backed survived; that is a
	// total failure, not a degraded success.
	if psychOut.Fallback && intelOut.Fallback && stratOut.Fallback &&
		draftOut.Fallback && finalOut.Fallback {
		return nil, true, eris.New("pipeline: all stages fell back")
	}

	result = &model.PipelineResult{
		Success:            true,
		Response:           final.Message,
		AppointmentIntent:  final.AppointmentIntent,
		FloorPlanImages:    final.FloorPlanImages,
		LeadUpdates:        final.LeadUpdates,
		ConsultantBriefing: final.ConsultantBriefing,
		QualityScore:       final.QualityScore,
		Layers: model.LayerResults{
			Psychology:   psych,
			Intelligence: intel,
			Strategy:     strat,
			Content:      draft,
			Synthesis:    final,
		},
	}
	return result, fallbackUsed, nil
}

// runStage wraps one stage call with timing, telemetry and best-effort
// persistence.
func runStage[T any](
	p *Pipeline,
	ctx context.Context,
	runID, name, modelID string,
	fn func(context.Context) (T, StageOutcome),
) (T, StageOutcome) {
	stageID := p.beginStage(ctx, runID, name)

	start := time.Now()
	out, outcome := fn(ctx)
	duration := time.Since(start)

	p.metrics.RecordStageAttempt(name, duration, !outcome.Fallback, outcome.Err)
	if outcome.Usage != (anthropic.TokenUsage{}) {
		outcome.Usage.LogCost(modelID, name)
	}

	status := model.StageStatusComplete
	var errText string
	if outcome.Fallback {
		status = model.StageStatusFallback
		if outcome.Err != nil {
			errText = outcome.Err.Error()
		}
	}
	p.finishStage(stageID, &model.StageResult{
		Name:     name,
		Status:   status,
		Duration: duration.Milliseconds(),
		Error:    errText,
		Output:   out,
	})

	return out, outcome
}

// genericResult is the orchestrator-level last line of defense.
func (p *Pipeline) genericResult() *model.PipelineResult {
	return &model.PipelineResult{
		Success:      false,
		Response:     p.h.GenericReply,
		QualityScore: fallbackQualityScore,
		Layers: model.LayerResults{
			Psychology:   model.DefaultPsychologyProfile(),
			Intelligence: model.DefaultIntelligencePackage(),
			Strategy:     model.DefaultStrategy(),
			Content:      model.DefaultDraftContent(),
			Synthesis: model.FinalResponse{
				Message:               p.h.GenericReply,
				QualityScore:          fallbackQualityScore,
				CulturallyAppropriate: true,
				ConfidenceLevel:       model.ConfidenceLow,
				Fallback:              true,
			},
		},
	}
}

// --- best-effort persistence ---

func (p *Pipeline) beginRun(ctx context.Context, leadID string) string {
	if p.store == nil {
		return ""
	}
	run, err := p.store.CreateRun(ctx, leadID)
	if err != nil {
		zap.L().Warn("pipeline: create run record failed", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) finishRun(runID string, status model.RunStatus, outcome *model.RunOutcome) {
	if p.store == nil || runID == "" {
		return
	}
	// Fresh context: the run budget may already be exhausted.
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()
	if err := p.store.CompleteRun(ctx, runID, status, outcome); err != nil {
		zap.L().Warn("pipeline: complete run record failed",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) beginStage(ctx context.Context, runID, name string) string {
	if p.store == nil || runID == "" {
		return ""
	}
	stageID, err := p.store.CreateStage(ctx, runID, name)
	if err != nil {
		zap.L().Warn("pipeline: create stage record failed",
			zap.String("stage", name),
			zap.Error(err),
		)
		return ""
	}
	return stageID
}

func (p *Pipeline) finishStage(stageID string, result *model.StageResult) {
	if p.store == nil || stageID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()
	if err := p.store.CompleteStage(ctx, stageID, result); err != nil {
		zap.L().Warn("pipeline: complete stage record failed",
			zap.String("stage", result.Name),
			zap.Error(err),
		)
	}
}
