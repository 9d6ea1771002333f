package scrape

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// ChromeLauncher starts a headless Chromium through chromedp.
type ChromeLauncher struct {
	ExecPath string
}

func (l ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	// the browser outlives the request that launched it
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	return &chromeBrowser{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

type chromeBrowser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Render opens url in a new tab, waits for the body and captures the
// document and a full page PNG screenshot. A failed screenshot is reported
// in Rendered.ScreenshotErr.
func (b *chromeBrowser) Render(ctx context.Context, url string) (*Rendered, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if status >= 400 {
		return nil, &Error{URL: url, Status: status, Err: ErrBadStatus}
	}

	out := &Rendered{Status: status}
	err = chromedp.Run(tabCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &out.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &Error{URL: url, Status: status, Err: err}
	}

	// a failed capture keeps the document
	if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&out.Screenshot, 100)); err != nil {
		out.Screenshot = nil
		out.ScreenshotErr = err
	}
	return out, nil
}

func (b *chromeBrowser) Close() error {
	b.cancel()
	return nil
}
