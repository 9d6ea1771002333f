package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mikeboe/market-research/pkg/sources"
)

// Serper calls the google.serper.dev search API. Queries are sent as one
// batched request.
type Serper struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewSerper(apiKey string) *Serper {
	return &Serper{
		APIKey:  apiKey,
		BaseURL: "https://google.serper.dev/search",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Serper) Name() string { return "serper" }

type serperQuery struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string, maxResults int) (sources.Batch, error) {
	batches, err := s.SearchBatch(ctx, []string{query}, maxResults)
	if err != nil {
		return sources.Batch{}, err
	}
	return batches[0], nil
}

func (s *Serper) SearchBatch(ctx context.Context, queries []string, maxResults int) ([]sources.Batch, error) {
	payload := make([]serperQuery, len(queries))
	for i, q := range queries {
		payload[i] = serperQuery{Q: q, Num: maxResults}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: serper request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: serper read: %v", ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: serper http %d: %s", ErrProvider, resp.StatusCode, string(data))
	}

	var responses []serperResponse
	if len(queries) == 1 && len(bytes.TrimSpace(data)) > 0 && bytes.TrimSpace(data)[0] == '{' {
		var single serperResponse
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%w: serper decode: %v", ErrProvider, err)
		}
		responses = []serperResponse{single}
	} else if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("%w: serper decode: %v", ErrProvider, err)
	}

	if len(responses) != len(queries) {
		return nil, fmt.Errorf("%w: serper returned %d responses for %d queries", ErrProvider, len(responses), len(queries))
	}

	batches := make([]sources.Batch, len(queries))
	for i, r := range responses {
		results := make([]sources.SearchResult, 0, len(r.Organic))
		for _, item := range r.Organic {
			results = append(results, sources.SearchResult{Title: item.Title, URL: item.Link, Content: item.Snippet})
		}
		batches[i] = sources.Batch{Query: queries[i], Results: results}
	}
	return batches, nil
}
