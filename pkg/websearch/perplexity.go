package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPerplexityBaseURL = "https://api.perplexity.ai"
	defaultPerplexityModel   = "sonar-pro"
)

// PerplexityClient searches via Perplexity's search-grounded chat completions.
// The model is instructed to return its findings as a JSON result list so the
// response slots into the same Result shape as a conventional search API.
type PerplexityClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// PerplexityOption configures the client.
type PerplexityOption func(*PerplexityClient)

// WithPerplexityBaseURL overrides the default API base URL.
func WithPerplexityBaseURL(u string) PerplexityOption {
	return func(c *PerplexityClient) {
		c.baseURL = u
	}
}

// WithPerplexityModel overrides the default model.
func WithPerplexityModel(model string) PerplexityOption {
	return func(c *PerplexityClient) {
		c.model = model
	}
}

// WithPerplexityHTTPClient overrides the default http.Client.
func WithPerplexityHTTPClient(hc *http.Client) PerplexityOption {
	return func(c *PerplexityClient) {
		c.http = hc
	}
}

// NewPerplexity creates a Perplexity-backed search client.
func NewPerplexity(apiKey string, opts ...PerplexityOption) *PerplexityClient {
	c := &PerplexityClient{
		apiKey:  apiKey,
		baseURL: defaultPerplexityBaseURL,
		model:   defaultPerplexityModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const perplexitySearchPrompt = `Search the web for: %s

Return the top %d results as a JSON object, nothing else:
{"results": [{"title": "<title>", "snippet": "<1-2 sentence summary>", "url": "<source url>"}]}`

type perplexityChatRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int               `json:"index"`
		Message perplexityMessage `json:"message"`
	} `json:"choices"`
}

// Search implements Client.
func (c *PerplexityClient) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if numResults <= 0 {
		numResults = 3
	}

	reqBody := perplexityChatRequest{
		Model: c.model,
		Messages: []perplexityMessage{
			{Role: "user", Content: fmt.Sprintf(perplexitySearchPrompt, query, numResults)},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("perplexity: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp perplexityChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, eris.Wrap(err, "perplexity: unmarshal response")
	}

	if len(chatResp.Choices) == 0 {
		return nil, nil
	}

	return parsePerplexityResults(chatResp.Choices[0].Message.Content, numResults)
}

// parsePerplexityResults extracts the JSON result list from the model reply.
// A reply that cannot be parsed yields empty results, not an error: the
// waterfall treats that the same as a provider miss.
func parsePerplexityResults(content string, numResults int) ([]Result, error) {
	start := bytes.IndexByte([]byte(content), '{')
	end := bytes.LastIndexByte([]byte(content), '}')
	if start < 0 || end <= start {
		return nil, nil
	}

	var parsed struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, nil
	}

	if numResults > 0 && len(parsed.Results) > numResults {
		parsed.Results = parsed.Results[:numResults]
	}
	return parsed.Results, nil
}
