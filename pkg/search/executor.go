package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/market-research/pkg/metrics"
	"github.com/mikeboe/market-research/pkg/scrape"
	"github.com/mikeboe/market-research/pkg/sources"
)

const (
	DefaultConcurrency  = 3
	DefaultFetchTimeout = 30 * time.Second
)

// PageCache is consulted before a URL is fetched.
type PageCache interface {
	Get(ctx context.Context, key string) (scrape.Page, bool, error)
	Put(ctx context.Context, key string, page scrape.Page) error
}

// Options selects how result pages are scraped.
type Options struct {
	// Render loads pages in the shared browser and captures screenshots.
	Render bool
	// IncludeImages keeps screenshot segments in the returned results.
	IncludeImages bool
}

// Executor runs queries against a provider and scrapes every unique result
// URL with bounded concurrency.
type Executor struct {
	Provider     Provider
	Fetcher      scrape.Fetcher
	Renderer     scrape.Fetcher
	Cache        PageCache
	Concurrency  int
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

func NewExecutor(provider Provider, fetcher scrape.Fetcher) *Executor {
	return &Executor{
		Provider:     provider,
		Fetcher:      fetcher,
		Concurrency:  DefaultConcurrency,
		FetchTimeout: DefaultFetchTimeout,
		Logger:       slog.Default(),
	}
}

// Search returns one batch per query, in query order, each holding at most
// maxResults results. A provider failure fails the whole search. Scrape
// failures become placeholder content.
func (e *Executor) Search(ctx context.Context, queries []string, maxResults int, opts Options) ([]sources.Batch, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	batches, err := e.query(ctx, queries, maxResults)
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]bool)
	for i := range batches {
		if maxResults > 0 && len(batches[i].Results) > maxResults {
			batches[i].Results = batches[i].Results[:maxResults]
		}
		for _, r := range batches[i].Results {
			if r.URL == "" || r.RawContent != "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			urls = append(urls, r.URL)
		}
	}

	e.logger().Info("Scraping search results", "queries", len(queries), "unique_urls", len(urls), "render", opts.Render)
	pages := e.scrapeAll(ctx, urls, opts.Render)

	for i := range batches {
		for j := range batches[i].Results {
			r := &batches[i].Results[j]
			if page, ok := pages[r.URL]; ok && r.RawContent == "" {
				r.RawContent = page.RawContent
				if opts.IncludeImages {
					r.ScreenshotSegments = append([]string(nil), page.ScreenshotSegments...)
				}
			}
			if !opts.IncludeImages {
				r.ScreenshotSegments = nil
			}
		}
	}
	return batches, nil
}

func (e *Executor) query(ctx context.Context, queries []string, maxResults int) ([]sources.Batch, error) {
	name := e.Provider.Name()

	if bp, ok := e.Provider.(BatchProvider); ok {
		batches, err := bp.SearchBatch(ctx, queries, maxResults)
		metrics.SearchesTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		if len(batches) != len(queries) {
			return nil, fmt.Errorf("%w: %s returned %d batches for %d queries", ErrProvider, name, len(batches), len(queries))
		}
		return batches, nil
	}

	batches := make([]sources.Batch, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			batch, err := e.Provider.Search(gctx, q, maxResults)
			metrics.SearchesTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
			if err != nil {
				return fmt.Errorf("search %q failed: %w", q, err)
			}
			batch.Query = q
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (e *Executor) scrapeAll(ctx context.Context, urls []string, render bool) map[string]scrape.Page {
	fetcher := e.Fetcher
	if render && e.Renderer != nil {
		fetcher = e.Renderer
	}
	if fetcher == nil || len(urls) == 0 {
		return nil
	}

	limit := e.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	pages := make([]scrape.Page, len(urls))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range urls {
		g.Go(func() error {
			pages[i] = e.fetchOne(ctx, fetcher, u, render)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]scrape.Page, len(urls))
	for i, u := range urls {
		out[u] = pages[i]
	}
	return out
}

func (e *Executor) fetchOne(ctx context.Context, fetcher scrape.Fetcher, url string, render bool) scrape.Page {
	key := url
	if render {
		key = "render:" + url
	}
	if e.Cache != nil {
		page, ok, err := e.Cache.Get(ctx, key)
		if err != nil {
			e.logger().Warn("Page cache lookup failed", "url", url, "error", err)
		} else if ok {
			metrics.FetchesTotal.WithLabelValues(metrics.OutcomeCached).Inc()
			return page
		}
	}

	timeout := e.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metrics.FetchesInFlight.Inc()
	page, err := fetcher.Fetch(fetchCtx, url)
	metrics.FetchesInFlight.Dec()
	metrics.FetchesTotal.WithLabelValues(metrics.Outcome(err)).Inc()

	if err != nil {
		e.logger().Warn("Failed to fetch page", "url", url, "error", err)
		return scrape.Page{URL: url, RawContent: sources.FetchErrorPrefix + err.Error()}
	}

	if e.Cache != nil {
		if err := e.Cache.Put(ctx, key, page); err != nil {
			e.logger().Warn("Page cache store failed", "url", url, "error", err)
		}
	}
	return page
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Searcher is the search surface the research pipelines depend on.
type Searcher interface {
	Search(ctx context.Context, queries []string, maxResults int, opts Options) ([]sources.Batch, error)
}

var _ Searcher = (*Executor)(nil)
