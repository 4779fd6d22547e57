// Package websearch provides keyworded web search over interchangeable
// providers. The default client cascades providers in order and returns the
// first non-empty result set.
package websearch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Result is a single ranked search hit.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Client performs a keyworded web search.
type Client interface {
	Search(ctx context.Context, query string, numResults int) ([]Result, error)
}

// Waterfall tries each provider in order until one returns results.
// A provider error is logged and the next provider is tried; the last
// error is returned only if every provider fails.
type Waterfall struct {
	providers []Client
	names     []string
}

// NewWaterfall builds a cascading client. Providers are tried in the order
// given.
func NewWaterfall(providers ...Client) *Waterfall {
	w := &Waterfall{providers: providers}
	for _, p := range providers {
		w.names = append(w.names, providerName(p))
	}
	return w
}

func providerName(c Client) string {
	switch c.(type) {
	case *JinaClient:
		return "jina"
	case *PerplexityClient:
		return "perplexity"
	default:
		return "custom"
	}
}

// Search implements Client.
func (w *Waterfall) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	if len(w.providers) == 0 {
		return nil, eris.New("websearch: no providers configured")
	}

	var lastErr error
	for i, p := range w.providers {
		results, err := p.Search(ctx, query, numResults)
		if err != nil {
			lastErr = err
			zap.L().Warn("websearch: provider failed, cascading",
				zap.String("provider", w.names[i]),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		if len(results) == 0 {
			zap.L().Debug("websearch: provider returned no results",
				zap.String("provider", w.names[i]),
				zap.String("query", query),
			)
			continue
		}
		return results, nil
	}

	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "websearch: all providers failed")
	}
	return nil, nil
}
