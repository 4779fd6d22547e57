package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/catalog"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/pkg/anthropic"
	"github.com/sells-group/lead-engine/pkg/websearch"
)

// Stub clients for tests and local dry runs. Each records its calls and can
// be primed with canned outputs or a forced error.

var (
	_ anthropic.Client = (*StubModelClient)(nil)
	_ websearch.Client = (*StubSearchClient)(nil)
	_ catalog.Client   = (*StubCatalogClient)(nil)
)

// StubModelClient replays canned JSON payloads in order; the last payload
// repeats once the list is exhausted. Err, when set, fails every call.
type StubModelClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error

	Calls []anthropic.MessageRequest
	next  int
}

// CreateMessage implements anthropic.Client.
func (s *StubModelClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, req)
	if s.Err != nil {
		return nil, s.Err
	}

	text := "{}"
	if len(s.Responses) > 0 {
		i := s.next
		if i >= len(s.Responses) {
			i = len(s.Responses) - 1
		}
		text = s.Responses[i]
		s.next++
	}

	return &anthropic.MessageResponse{
		ID:      "stub-msg",
		Model:   req.Model,
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

// StubSearchClient returns a fixed result set for every query.
type StubSearchClient struct {
	mu      sync.Mutex
	Results []websearch.Result
	Err     error

	Queries []string
}

// Search implements websearch.Client.
func (s *StubSearchClient) Search(_ context.Context, query string, numResults int) ([]websearch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Queries = append(s.Queries, query)
	if s.Err != nil {
		return nil, s.Err
	}
	if numResults > 0 && len(s.Results) > numResults {
		return s.Results[:numResults], nil
	}
	return s.Results, nil
}

// StubCatalogClient serves a fixed property list and records the last filter.
type StubCatalogClient struct {
	mu         sync.Mutex
	Properties []model.PropertyRecord
	Err        error

	LastFilter catalog.Filter
	Searches   int
}

// Search implements catalog.Client.
func (s *StubCatalogClient) Search(_ context.Context, filter catalog.Filter) ([]model.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastFilter = filter
	s.Searches++
	if s.Err != nil {
		return nil, s.Err
	}
	// Copy so callers mutating verification state do not share backing arrays
	// across tests.
	out := make([]model.PropertyRecord, len(s.Properties))
	copy(out, s.Properties)
	return out, nil
}

// Get implements catalog.Client.
func (s *StubCatalogClient) Get(_ context.Context, id string) (*model.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	for _, rec := range s.Properties {
		if rec.ID == id {
			r := rec
			return &r, nil
		}
	}
	return nil, eris.Errorf("stub catalog: property %s not found", id)
}
