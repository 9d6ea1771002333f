package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"
)

// Page is the result of fetching one URL.
type Page struct {
	URL                string
	RawContent         string
	ScreenshotSegments []string
}

// Fetcher loads the content of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

var ErrBadStatus = errors.New("unexpected status")

// Error describes a failed fetch. Status is zero when no response was
// received.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Referer":         "https://www.google.com/",
}

const defaultMaxBodyBytes = 5 << 20

// HTTPFetcher fetches pages with plain HTTP requests using browser-like
// headers. PDF documents are handed to PDF when set.
type HTTPFetcher struct {
	Client       *http.Client
	MaxBodyBytes int64
	PDF          PDFExtractor
	Logger       *slog.Logger
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:       &http.Client{Timeout: timeout},
		MaxBodyBytes: defaultMaxBodyBytes,
		Logger:       slog.Default(),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if f.PDF != nil && strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return f.fetchPDF(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, &Error{URL: url, Err: err}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Page{}, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Page{}, &Error{URL: url, Status: resp.StatusCode, Err: ErrBadStatus}
	}

	if f.PDF != nil && isPDF(resp.Header.Get("Content-Type")) {
		return f.fetchPDF(ctx, url)
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Page{}, &Error{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	f.logger().Debug("Fetched page", "url", url, "status", resp.StatusCode, "length", len(body))
	return Page{URL: url, RawContent: string(body)}, nil
}

func (f *HTTPFetcher) fetchPDF(ctx context.Context, url string) (Page, error) {
	text, err := f.PDF.ExtractPDF(ctx, url)
	if err != nil {
		return Page{}, &Error{URL: url, Err: err}
	}
	return Page{URL: url, RawContent: text}, nil
}

func (f *HTTPFetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/pdf"
}
