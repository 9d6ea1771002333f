package scrape

import (
	"context"
	"log/slog"
)

// RenderFetcher fetches pages through the shared browser and attaches
// screenshot segments when the capture succeeds.
type RenderFetcher struct {
	Pool   *BrowserPool
	Logger *slog.Logger
}

func NewRenderFetcher(pool *BrowserPool) *RenderFetcher {
	return &RenderFetcher{Pool: pool, Logger: slog.Default()}
}

func (f *RenderFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	browser, release, err := f.Pool.Acquire(ctx)
	if err != nil {
		return Page{}, &Error{URL: url, Err: err}
	}
	defer release()

	rendered, err := browser.Render(ctx, url)
	if err != nil {
		return Page{}, err
	}

	page := Page{URL: url, RawContent: rendered.HTML}
	if rendered.ScreenshotErr != nil {
		f.logger().Warn("Screenshot failed", "url", url, "error", rendered.ScreenshotErr)
	}
	if len(rendered.Screenshot) > 0 {
		segments, err := SegmentScreenshot(rendered.Screenshot)
		if err != nil {
			f.logger().Warn("Screenshot segmentation failed", "url", url, "error", err)
		} else {
			page.ScreenshotSegments = segments
		}
	}
	return page, nil
}

func (f *RenderFetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
