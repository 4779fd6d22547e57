package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultJinaBaseURL = "https://s.jina.ai"

// JinaClient searches the web via the Jina AI Search API.
type JinaClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// JinaOption configures the Jina client.
type JinaOption func(*JinaClient)

// WithJinaBaseURL sets a custom base URL (for testing).
func WithJinaBaseURL(u string) JinaOption {
	return func(c *JinaClient) {
		c.baseURL = u
	}
}

// WithJinaHTTPClient sets a custom HTTP client.
func WithJinaHTTPClient(hc *http.Client) JinaOption {
	return func(c *JinaClient) {
		c.http = hc
	}
}

// NewJina creates a Jina Search client.
func NewJina(apiKey string, opts ...JinaOption) *JinaClient {
	c := &JinaClient{
		apiKey:  apiKey,
		baseURL: defaultJinaBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// jinaSearchResponse is the parsed Jina Search API response.
type jinaSearchResponse struct {
	Code int `json:"code"`
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Content     string `json:"content"`
		Description string `json:"description"`
	} `json:"data"`
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503).
func (c *JinaClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "jina: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("jina: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

// Search implements Client.
func (c *JinaClient) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search request failed")
	}

	// Jina returns 422 when no results are available for the query.
	// Treat this as empty results rather than an error.
	if statusCode == http.StatusUnprocessableEntity {
		return nil, nil
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: search unexpected status %d: %s", statusCode, string(body))
	}

	var parsed jinaSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}

	results := make([]Result, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		snippet := d.Description
		if snippet == "" {
			snippet = d.Content
		}
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		results = append(results, Result{
			Title:   d.Title,
			Snippet: snippet,
			URL:     d.URL,
		})
		if numResults > 0 && len(results) >= numResults {
			break
		}
	}

	return results, nil
}
