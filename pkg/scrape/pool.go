package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Rendered is a page loaded in a real browser.
type Rendered struct {
	Status     int
	HTML       string
	Screenshot []byte
	// ScreenshotErr is set when the page rendered but the capture failed.
	ScreenshotErr error
}

// Browser renders pages. Implementations must be safe for concurrent use.
type Browser interface {
	Render(ctx context.Context, url string) (*Rendered, error)
	Close() error
}

// Launcher starts a browser process.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// BrowserPool shares one browser between concurrent users. The browser is
// launched on the first Acquire and closed when the last user releases it.
type BrowserPool struct {
	Logger *slog.Logger

	mu         sync.Mutex
	launcher   Launcher
	browser    Browser
	refs       int
	generation int
}

func NewBrowserPool(launcher Launcher) *BrowserPool {
	return &BrowserPool{launcher: launcher, Logger: slog.Default()}
}

// Acquire returns the shared browser and a release func. Calling release
// more than once has no effect.
func (p *BrowserPool) Acquire(ctx context.Context) (Browser, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser == nil {
		b, err := p.launcher.Launch(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		p.browser = b
		p.logger().Info("Browser launched")
	}
	p.refs++

	browser, generation := p.browser, p.generation
	var once sync.Once
	release := func() {
		once.Do(func() { p.release(generation) })
	}
	return browser, release, nil
}

func (p *BrowserPool) release(generation int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// a forced Close already tore this browser down
	if generation != p.generation {
		return
	}
	p.refs--
	if p.refs > 0 {
		return
	}
	p.teardown()
}

// Close tears the browser down regardless of outstanding users.
func (p *BrowserPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.teardown()
}

func (p *BrowserPool) teardown() error {
	p.refs = 0
	p.generation++
	if p.browser == nil {
		return nil
	}
	b := p.browser
	p.browser = nil
	if err := b.Close(); err != nil {
		p.logger().Error("Failed to close browser", "error", err)
		return fmt.Errorf("failed to close browser: %w", err)
	}
	p.logger().Info("Browser closed")
	return nil
}

// Refs reports the number of outstanding users.
func (p *BrowserPool) Refs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs
}

func (p *BrowserPool) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
