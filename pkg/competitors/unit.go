package competitors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/sources"
	"github.com/mikeboe/market-research/pkg/workflow"
)

// Stages of a single competitor unit, in execution order.
const (
	StageStatsQueries    workflow.Stage = "stats_queries"
	StageStatsSearch     workflow.Stage = "stats_search"
	StageStatsAnalysis   workflow.Stage = "stats_analysis"
	StageProductQueries  workflow.Stage = "product_queries"
	StageProductSearch   workflow.Stage = "product_search"
	StageProductAnalysis workflow.Stage = "product_analysis"
	StageReport          workflow.Stage = "report"
	stageDone            workflow.Stage = "done"
)

type statsStage struct {
	queries []string
	sources *sources.SourceSet
	stats   Stats
}

type productsStage struct {
	queries []string
	sources *sources.SourceSet
	list    productList
}

// unit researches one competitor. It is owned by a single goroutine.
type unit struct {
	r        *Researcher
	in       Input
	name     string
	date     string
	logger   *slog.Logger
	stage    workflow.Stage
	stats    statsStage
	products productsStage
	out      Competitor
}

func (r *Researcher) runUnit(ctx context.Context, in Input, name string) (Competitor, error) {
	u := &unit{
		r:      r,
		in:     in,
		name:   name,
		date:   r.now().Format("2006-01-02"),
		logger: r.logger().With("competitor", name),
		stage:  StageStatsQueries,
	}

	for u.stage != stageDone {
		stage := u.stage
		r.notify(workflow.Event{Stage: workflow.StageUnit, Entity: name, Message: string(stage)})
		if err := u.step(ctx); err != nil {
			u.logger.Error("Competitor stage failed", "stage", stage, "error", err)
			return Competitor{}, &workflow.StageError{Entity: name, Stage: stage, Err: err}
		}
	}
	return u.out, nil
}

func (u *unit) step(ctx context.Context) error {
	switch u.stage {
	case StageStatsQueries:
		queries, err := u.queries(ctx, prompts.CompetitorStatsQueries, "competitor_stats_queries", u.in.Limits.Stats.Queries, map[string]any{
			"Competitor":  u.name,
			"NumQueries":  u.in.Limits.Stats.Queries,
			"CurrentDate": u.date,
		})
		if err != nil {
			return err
		}
		u.stats.queries = queries
		u.stage = StageStatsSearch

	case StageStatsSearch:
		set, err := u.search(ctx, u.stats.queries, u.in.Limits.Stats.Results, u.in.Limits.Stats.TokensPerSource)
		if err != nil {
			return err
		}
		u.stats.sources = set
		u.stage = StageStatsAnalysis

	case StageStatsAnalysis:
		system, err := u.r.Prompts.Render(prompts.CompetitorStats, map[string]any{
			"Competitor":  u.name,
			"CurrentDate": u.date,
		})
		if err != nil {
			return err
		}
		err = u.r.LLM.Generate(ctx, llm.Request{
			Name:        "competitor_stats",
			System:      system,
			Parts:       u.stats.sources.Parts(),
			Instruction: "Analyze the search results and extract the relevant information about the competitor.",
			Schema:      statsSchema,
		}, &u.stats.stats)
		if err != nil {
			return err
		}
		u.logger.Info("Extracted competitor stats", "employees", deref(u.stats.stats.Employees), "domain", deref(u.stats.stats.OfficialWebsiteDomain))
		u.stage = StageProductQueries

	case StageProductQueries:
		queries, err := u.queries(ctx, prompts.CompetitorProductQueries, "competitor_product_queries", u.in.Limits.Products.Queries, map[string]any{
			"Competitor":   u.name,
			"BusinessIdea": u.in.BusinessIdea,
			"NumQueries":   u.in.Limits.Products.Queries,
		})
		if err != nil {
			return err
		}
		u.products.queries = queries
		u.stage = StageProductSearch

	case StageProductSearch:
		set, err := u.search(ctx, u.products.queries, u.in.Limits.Products.Results, u.in.Limits.Products.TokensPerSource)
		if err != nil {
			return err
		}
		u.products.sources = set
		u.stage = StageProductAnalysis

	case StageProductAnalysis:
		system, err := u.r.Prompts.Render(prompts.CompetitorProducts, map[string]any{
			"Competitor":   u.name,
			"BusinessIdea": u.in.BusinessIdea,
		})
		if err != nil {
			return err
		}
		err = u.r.LLM.Generate(ctx, llm.Request{
			Name:        "competitor_products",
			System:      system,
			Parts:       u.products.sources.Parts(),
			Instruction: "Analyze the search results and extract the relevant information about the competitor.",
			Schema:      productListSchema,
		}, &u.products.list)
		if err != nil {
			return err
		}
		u.logger.Info("Extracted competitor products", "count", len(u.products.list.Products))
		u.stage = StageReport

	case StageReport:
		if err := u.writeReport(ctx); err != nil {
			return err
		}
		u.stage = stageDone

	default:
		return fmt.Errorf("unknown stage %q", u.stage)
	}
	return nil
}

func (u *unit) queries(ctx context.Context, template, name string, limit int, data map[string]any) ([]string, error) {
	system, err := u.r.Prompts.Render(template, data)
	if err != nil {
		return nil, err
	}
	return u.r.LLM.GenerateQueries(ctx, name, system,
		"Generate search queries that will help with researching the competitor.", limit)
}

func (u *unit) search(ctx context.Context, queries []string, maxResults, tokens int) (*sources.SourceSet, error) {
	batches, err := u.r.Search.Search(ctx, queries, maxResults, search.Options{
		Render:        u.in.Screenshots,
		IncludeImages: u.in.Screenshots,
	})
	if err != nil {
		return nil, err
	}
	set, err := sources.Deduplicate(batches, sources.Options{MaxTokensPerSource: tokens})
	if err != nil {
		return nil, err
	}
	u.r.notify(workflow.Event{Stage: workflow.StageUnit, Entity: u.name, Message: "sources collected", Sources: set})
	return set, nil
}

func (u *unit) writeReport(ctx context.Context) error {
	products := u.products.list.Products
	if products == nil {
		products = []Product{}
	}
	productJSON, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return err
	}

	stats := u.stats.stats
	system, err := u.r.Prompts.Render(prompts.CompetitorReport, map[string]any{
		"BusinessIdea":        u.in.BusinessIdea,
		"Competitor":          u.name,
		"Employees":           deref(stats.Employees),
		"RevenueCurrentYear":  deref(stats.RevenueCurrentYearInMillions),
		"RevenuePreviousYear": deref(stats.RevenuePreviousYearInMillions),
		"Products":            string(productJSON),
	})
	if err != nil {
		return err
	}

	var report competitorReport
	err = u.r.LLM.Generate(ctx, llm.Request{
		Name:        "competitor_report",
		System:      system,
		Parts:       u.products.sources.Parts(),
		Instruction: "Write a report about the competitor in markdown.",
		Schema:      competitorReportSchema,
	}, &report)
	if err != nil {
		return err
	}

	u.out = Competitor{
		Name:            u.name,
		Stats:           stats,
		Products:        products,
		ProductAnalysis: u.products.list.Analysis,
		Report:          report.Report,
		Scores:          report.Scores,
		StatSources:     u.stats.sources.URLs(),
		ProductSources:  u.products.sources.URLs(),
	}
	return nil
}

// deref renders an optional value for prompts and logs.
func deref[T any](v *T) any {
	if v == nil {
		return "unknown"
	}
	return *v
}
