// Package research assembles the shared research stack and builds the
// pipelines that run on it.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/market-research/pkg/cache"
	"github.com/mikeboe/market-research/pkg/canvas"
	"github.com/mikeboe/market-research/pkg/clients"
	"github.com/mikeboe/market-research/pkg/competitors"
	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/landscape"
	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/report"
	"github.com/mikeboe/market-research/pkg/scrape"
	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/swot"
	"github.com/mikeboe/market-research/pkg/workflow"
)

// Engine owns the long-lived resources shared by every run: models, prompt
// templates, the search executor with its browser pool and page cache.
type Engine struct {
	Config    *config.Config
	Reasoning llms.Model
	Fast      llms.Model
	Prompts   *prompts.Set
	Executor  *search.Executor
	Browser   *scrape.BrowserPool
	Cache     *cache.PageCache
	Logger    *slog.Logger
}

// NewEngine builds the stack from cfg. Prompt templates are loaded first so
// that a broken PROMPTS_DIR fails before any client is created. The page
// cache is optional: it is skipped when REDIS_URL is empty or unreachable.
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	set, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	reasoning, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, cfg.ReasoningModel)
	if err != nil {
		return nil, fmt.Errorf("failed to init reasoning model: %w", err)
	}
	fast, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, cfg.FastModel)
	if err != nil {
		return nil, fmt.Errorf("failed to init fast model: %w", err)
	}

	provider, err := search.NewProvider(cfg.SearchProvider, cfg.SerperApiKey, cfg.TavilyApiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init search provider: %w", err)
	}

	e := &Engine{
		Config:    cfg,
		Reasoning: reasoning,
		Fast:      fast,
		Prompts:   set,
		Logger:    slog.Default(),
	}
	e.Executor = e.newExecutor(provider)

	if cfg.RedisURL != "" {
		pageCache, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			e.Logger.Warn("Page cache disabled", "error", err)
		} else {
			e.Cache = pageCache
			e.Executor.Cache = pageCache
		}
	}
	return e, nil
}

func (e *Engine) newExecutor(provider search.Provider) *search.Executor {
	fetcher := scrape.NewHTTPFetcher(e.Config.FetchTimeout)
	if e.Config.MistralApiKey != "" {
		fetcher.PDF = scrape.NewMistralOCR(e.Config.MistralApiKey)
	}
	e.Browser = scrape.NewBrowserPool(scrape.ChromeLauncher{ExecPath: e.Config.ChromiumPath})

	executor := search.NewExecutor(provider, fetcher)
	executor.Renderer = scrape.NewRenderFetcher(e.Browser)
	if e.Config.ScrapeConcurrency > 0 {
		executor.Concurrency = e.Config.ScrapeConcurrency
	}
	if e.Config.FetchTimeout > 0 {
		executor.FetchTimeout = e.Config.FetchTimeout
	}
	return executor
}

// Close releases the browser and the cache connection.
func (e *Engine) Close() error {
	var errs []error
	if e.Browser != nil {
		errs = append(errs, e.Browser.Close())
	}
	if e.Cache != nil {
		errs = append(errs, e.Cache.Close())
	}
	return errors.Join(errs...)
}

// client returns an LLM client for model logging to logger.
func (e *Engine) client(model llms.Model, logger *slog.Logger) *llm.Client {
	c := llm.NewClient(model, e.Config.LLMAttempts)
	c.Logger = logger
	return c
}

// searcher returns a copy of the shared executor logging to logger.
func (e *Engine) searcher(logger *slog.Logger) *search.Executor {
	exec := *e.Executor
	exec.Logger = logger
	return &exec
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Competitors builds a competitor researcher for one run.
func (e *Engine) Competitors(logger *slog.Logger, observer workflow.Observer) *competitors.Researcher {
	logger = orDefault(logger)
	searcher := e.searcher(logger)

	r := competitors.NewResearcher(e.client(e.Fast, logger), e.Prompts, searcher)
	r.Logger = logger
	r.Observer = observer

	analyzer := swot.NewAnalyzer(e.client(e.Reasoning, logger), e.Prompts, searcher)
	analyzer.Logger = logger
	r.SWOT = analyzer
	return r
}

// Report builds a report writer for one run.
func (e *Engine) Report(logger *slog.Logger, observer workflow.Observer) *report.Writer {
	logger = orDefault(logger)
	w := report.NewWriter(e.client(e.Reasoning, logger), e.Prompts, e.searcher(logger))
	w.Logger = logger
	w.Observer = observer
	return w
}

// Landscape builds a landscape researcher whose topical reports share
// logger and observer.
func (e *Engine) Landscape(logger *slog.Logger, observer workflow.Observer) *landscape.Researcher {
	logger = orDefault(logger)
	r := landscape.NewResearcher(e.client(e.Reasoning, logger), e.Prompts, e.Report(logger, observer))
	r.Logger = logger
	r.Observer = observer
	return r
}

func (e *Engine) Canvas(logger *slog.Logger) *canvas.Generator {
	logger = orDefault(logger)
	g := canvas.NewGenerator(e.client(e.Fast, logger), e.Prompts)
	g.Logger = logger
	return g
}

// DefaultCompetitorInput returns the competitor input carrying the
// configured limits.
func (e *Engine) DefaultCompetitorInput(businessIdea string) competitors.Input {
	in := competitors.DefaultInput(businessIdea)
	in.Limits = e.Config.Limits
	in.Concurrency = e.Config.UnitConcurrency
	return in
}
