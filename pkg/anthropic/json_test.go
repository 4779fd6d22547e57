package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "hello "},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "world"},
	}}

	assert.Equal(t, "hello world", ExtractText(resp))
	assert.Equal(t, "", ExtractText(nil))
	assert.Equal(t, "", ExtractText(&MessageResponse{}))
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", `Here you go: {"a": 1} hope that helps`, `{"a": 1}`},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"no object", "sorry, I cannot do that", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 100, OutputTokens: 50}
	u.Add(TokenUsage{InputTokens: 10, OutputTokens: 5, CacheReadInputTokens: 400})

	assert.Equal(t, int64(110), u.InputTokens)
	assert.Equal(t, int64(55), u.OutputTokens)
	assert.Equal(t, int64(400), u.CacheReadInputTokens)
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.InDelta(t, 18.00, u.EstimateCost("claude-sonnet-4-5-20250929"), 1e-9)
	assert.Zero(t, u.EstimateCost("unknown-model"))
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	t.Parallel()

	blocks := BuildCachedSystemBlocks("system prompt")

	assert.Len(t, blocks, 1)
	assert.Equal(t, "system prompt", blocks[0].Text)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
