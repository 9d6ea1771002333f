// Package searchtest provides an in-memory search.Searcher for pipeline
// tests.
package searchtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/sources"
)

// Searcher answers every query with generated results. Queries containing
// a key of Fail return that error.
type Searcher struct {
	// ResultsPerQuery defaults to the requested maximum.
	ResultsPerQuery int
	Fail            map[string]error

	mu      sync.Mutex
	queries []string
	options []search.Options
}

func (s *Searcher) Search(ctx context.Context, queries []string, maxResults int, opts search.Options) ([]sources.Batch, error) {
	s.mu.Lock()
	s.queries = append(s.queries, queries...)
	s.options = append(s.options, opts)
	s.mu.Unlock()

	n := maxResults
	if s.ResultsPerQuery > 0 && s.ResultsPerQuery < n {
		n = s.ResultsPerQuery
	}

	batches := make([]sources.Batch, 0, len(queries))
	for _, q := range queries {
		for match, err := range s.Fail {
			if strings.Contains(q, match) {
				return nil, err
			}
		}
		results := make([]sources.SearchResult, n)
		for i := range results {
			slug := strings.ReplaceAll(strings.ToLower(q), " ", "-")
			results[i] = sources.SearchResult{
				Title:      fmt.Sprintf("%s result %d", q, i),
				URL:        fmt.Sprintf("https://example.com/%s/%d", slug, i),
				Content:    "snippet about " + q,
				RawContent: "page text about " + q,
			}
		}
		batches = append(batches, sources.Batch{Query: q, Results: results})
	}
	return batches, nil
}

// Queries returns every query seen so far.
func (s *Searcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Options returns the options of every call so far.
func (s *Searcher) Options() []search.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]search.Options(nil), s.options...)
}
