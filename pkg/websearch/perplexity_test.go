package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perplexityReply(content string) string {
	resp := map[string]any{
		"id": "resp-1",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestPerplexitySearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req perplexityChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar-pro", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Aurora Residences")

		w.Write([]byte(perplexityReply(`Here are the results:
{"results": [{"title": "Aurora review", "snippet": "From $1.4M", "url": "https://example.com/1"}]}`)))
	}))
	defer srv.Close()

	client := NewPerplexity("test-key", WithPerplexityBaseURL(srv.URL))
	results, err := client.Search(context.Background(), "Aurora Residences Singapore", 3)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Aurora review", results[0].Title)
	assert.Equal(t, "https://example.com/1", results[0].URL)
}

func TestPerplexitySearch_UnparseableReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(perplexityReply("I could not find anything useful.")))
	}))
	defer srv.Close()

	client := NewPerplexity("test-key", WithPerplexityBaseURL(srv.URL))
	results, err := client.Search(context.Background(), "query", 3)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPerplexitySearch_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid key"}`))
	}))
	defer srv.Close()

	client := NewPerplexity("bad-key", WithPerplexityBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "query", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestParsePerplexityResults_Cap(t *testing.T) {
	t.Parallel()

	content := `{"results": [
		{"title": "a", "url": "https://a"},
		{"title": "b", "url": "https://b"},
		{"title": "c", "url": "https://c"}
	]}`

	results, err := parsePerplexityResults(content, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
