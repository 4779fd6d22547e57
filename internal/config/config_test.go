package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "lead-engine.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, 30, cfg.Pipeline.BudgetSecs)
	assert.False(t, cfg.Pipeline.SequentialVerify)
	assert.InDelta(t, 1.0, cfg.Pipeline.VerifyRatePerSec, 1e-9)
	assert.InDelta(t, 0.7, cfg.Pipeline.VerifiedThreshold, 1e-9)
	assert.InDelta(t, 0.7, cfg.Pipeline.QualifiedThreshold, 1e-9)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEADENGINE_STORE_DRIVER", "postgres")
	t.Setenv("LEADENGINE_PIPELINE_BUDGET_SECS", "10")
	t.Setenv("LEADENGINE_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Pipeline.BudgetSecs)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}
