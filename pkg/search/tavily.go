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

// Tavily calls the Tavily search API, one request per query. Tavily
// returns the page text itself, so its results need no scraping.
type Tavily struct {
	APIKey  string
	BaseURL string
	// Topic is Tavily's topic parameter (general or news).
	Topic      string
	MaxRetries int
	client     *http.Client
}

func NewTavily(apiKey string) *Tavily {
	return &Tavily{
		APIKey:     apiKey,
		BaseURL:    "https://api.tavily.com/search",
		Topic:      "general",
		MaxRetries: 5,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) (sources.Batch, error) {
	body := map[string]any{
		"query":               query,
		"max_results":         maxResults,
		"include_raw_content": true,
		"topic":               t.Topic,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return sources.Batch{}, err
	}

	var resp *http.Response
	delay := 1 * time.Second
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return sources.Batch{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.APIKey)

		resp, err = t.client.Do(req)
		if err != nil {
			return sources.Batch{}, fmt.Errorf("%w: tavily request: %v", ErrProvider, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= t.MaxRetries {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay up to 30s.
		select {
		case <-ctx.Done():
			return sources.Batch{}, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return sources.Batch{}, fmt.Errorf("%w: tavily http %d: %s", ErrProvider, resp.StatusCode, string(data))
	}

	var response struct {
		Results []struct {
			Title      string `json:"title"`
			URL        string `json:"url"`
			Content    string `json:"content"`
			RawContent string `json:"raw_content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return sources.Batch{}, fmt.Errorf("%w: tavily decode: %v", ErrProvider, err)
	}

	results := make([]sources.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, sources.SearchResult{Title: r.Title, URL: r.URL, Content: r.Content, RawContent: r.RawContent})
	}
	return sources.Batch{Query: query, Results: results}, nil
}
