package research

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// ErrSearchNotConfigured is returned when no search credential is set.
var ErrSearchNotConfigured = errors.New("search API key is not configured")

// SearchResult is one ranked web result.
type SearchResult struct {
	URL   string
	Title string
}

// Searcher runs a free-text web search.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// SearchError wraps a failed search call.
type SearchError struct {
	Query string
	Cause error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for %q: %v", e.Query, e.Cause)
}

func (e *SearchError) Unwrap() error {
	return e.Cause
}

// CustomSearch queries Google Programmable Search.
type CustomSearch struct {
	svc *customsearch.Service
	cx  string
}

// NewCustomSearch creates a searcher for engine cx. An empty apiKey yields
// ErrSearchNotConfigured. endpoint overrides the API base URL when set.
func NewCustomSearch(ctx context.Context, apiKey, cx, endpoint string) (*CustomSearch, error) {
	if apiKey == "" || cx == "" {
		return nil, ErrSearchNotConfigured
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &CustomSearch{svc: svc, cx: cx}, nil
}

// Search returns up to count results (the API caps this at 10).
func (s *CustomSearch) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if count <= 0 || count > 10 {
		count = 10
	}
	resp, err := s.svc.Cse.List().Cx(s.cx).Q(query).Num(int64(count)).Context(ctx).Do()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &SearchError{Query: query, Cause: err}
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, SearchResult{URL: item.Link, Title: item.Title})
	}
	return results, nil
}
