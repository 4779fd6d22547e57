package pipeline

import (
	"context"

	"github.com/sells-group/lead-engine/internal/resilience"
	"github.com/sells-group/lead-engine/pkg/anthropic"
)

// Stage names as recorded in metrics and the run store.
const (
	StagePsychology   = "1_psychology"
	StageIntelligence = "2_intelligence"
	StageStrategy     = "3_strategy"
	StageContent      = "4_content"
	StageSynthesis    = "5_synthesis"
)

// StageOutcome makes the always-defaults-never-throws contract explicit:
// every stage returns its output plus an outcome saying whether the output
// came from inference or from the stage's fixed fallback. Err is the
// underlying cause when Fallback is true; it never propagates past the stage.
type StageOutcome struct {
	Fallback bool
	Err      error
	Usage    anthropic.TokenUsage
}

func successOutcome(usage anthropic.TokenUsage) StageOutcome {
	return StageOutcome{Usage: usage}
}

func fallbackOutcome(err error) StageOutcome {
	return StageOutcome{Fallback: true, Err: err}
}

// modelCallRetry bounds retries on transient model errors. Two attempts
// keeps worst-case stage latency inside the run budget.
var modelCallRetry = resilience.RetryConfig{
	MaxAttempts:    2,
	InitialBackoff: 300e6, // 300ms
}

// callModelJSON issues one structured-output model call and returns the
// cleaned JSON payload. Empty or non-JSON content comes back as "{}" so the
// caller's per-field defaulting handles it uniformly.
func callModelJSON(ctx context.Context, aiClient anthropic.Client, req anthropic.MessageRequest) (string, anthropic.TokenUsage, error) {
	resp, err := resilience.DoVal(ctx, modelCallRetry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return aiClient.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", anthropic.TokenUsage{}, err
	}

	text := anthropic.CleanJSON(anthropic.ExtractText(resp))
	if text == "" {
		text = "{}"
	}
	return text, resp.Usage, nil
}
