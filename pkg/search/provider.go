package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikeboe/market-research/pkg/sources"
)

var ErrProvider = errors.New("search provider error")

// Provider runs a single web search query.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) (sources.Batch, error)
}

// BatchProvider answers several queries in one request. The returned
// batches are in query order.
type BatchProvider interface {
	Provider
	SearchBatch(ctx context.Context, queries []string, maxResults int) ([]sources.Batch, error)
}

// NewProvider builds the provider called name.
func NewProvider(name, serperKey, tavilyKey string) (Provider, error) {
	switch name {
	case "serper", "":
		if serperKey == "" {
			return nil, fmt.Errorf("SERPER_API_KEY is not set")
		}
		return NewSerper(serperKey), nil
	case "tavily":
		if tavilyKey == "" {
			return nil, fmt.Errorf("TAVILY_API_KEY is not set")
		}
		return NewTavily(tavilyKey), nil
	case "arxiv":
		return NewArxiv(), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", name)
	}
}
