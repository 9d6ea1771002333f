package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/market-research/pkg/sources"
)

type arxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	ID        string      `xml:"id"`
	Link      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// Arxiv searches the arXiv export API. Useful for technology state and
// trend reports where papers beat marketing pages.
type Arxiv struct {
	BaseURL string
	client  *http.Client
}

func NewArxiv() *Arxiv {
	return &Arxiv{
		BaseURL: "https://export.arxiv.org/api/query",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Arxiv) Name() string { return "arxiv" }

func (a *Arxiv) Search(ctx context.Context, query string, maxResults int) (sources.Batch, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := a.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return sources.Batch{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return sources.Batch{}, fmt.Errorf("%w: arxiv request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sources.Batch{}, fmt.Errorf("%w: arxiv read: %v", ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("API returned non-200 status code", "status", resp.StatusCode, "body", string(body))
		return sources.Batch{}, fmt.Errorf("%w: arxiv http %d", ErrProvider, resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return sources.Batch{}, fmt.Errorf("%w: failed to unmarshal XML: %v", ErrProvider, err)
	}

	results := make([]sources.SearchResult, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		link := strings.TrimSpace(entry.ID)
		for _, l := range entry.Link {
			if l.Type == "application/pdf" {
				link = l.Href
				break
			}
		}
		results = append(results, sources.SearchResult{
			Title:   strings.Join(strings.Fields(entry.Title), " "),
			URL:     link,
			Content: fmt.Sprintf("Published %s. %s", entry.Published, strings.Join(strings.Fields(entry.Summary), " ")),
		})
	}
	return sources.Batch{Query: query, Results: results}, nil
}
