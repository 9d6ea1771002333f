// Package competitors discovers the competitors of a business idea and
// researches each of them concurrently.
package competitors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/metrics"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/sources"
	"github.com/mikeboe/market-research/pkg/swot"
	"github.com/mikeboe/market-research/pkg/workflow"
)

const (
	Pipeline = "competitors"

	// search batches analyzed per competitor name extraction call
	batchesPerGroup = 10

	// summaryEntity names the executive summary in Result.Failed.
	summaryEntity = "executive_summary"
)

// SWOTAnalyzer writes a SWOT analysis for one competitor.
type SWOTAnalyzer interface {
	Analyze(ctx context.Context, s swot.Subject) (*swot.Analysis, error)
}

type Researcher struct {
	LLM      *llm.Client
	Prompts  *prompts.Set
	Search   search.Searcher
	SWOT     SWOTAnalyzer
	Logger   *slog.Logger
	Observer workflow.Observer
	Now      func() time.Time
}

func NewResearcher(client *llm.Client, set *prompts.Set, searcher search.Searcher) *Researcher {
	return &Researcher{
		LLM:     client,
		Prompts: set,
		Search:  searcher,
		Logger:  slog.Default(),
		Now:     time.Now,
	}
}

// Run discovers competitors, researches every one of them concurrently and
// writes an executive summary. A failing competitor, or a failing summary,
// is recorded in Result.Failed and does not affect the rest of the result.
func (r *Researcher) Run(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	logger := r.logger()
	logger.Info("Starting competitor research", "business_idea", in.BusinessIdea)

	done := workflow.Time(Pipeline, workflow.StageDiscovery)
	names, err := r.discover(ctx, in)
	done()
	if err != nil {
		r.notify(workflow.Event{Stage: workflow.StageDiscovery, Message: "discovery failed", Err: err.Error()})
		return nil, &workflow.StageError{Entity: in.BusinessIdea, Stage: workflow.StageDiscovery, Err: err}
	}
	if in.MaxCompetitors > 0 && len(names) > in.MaxCompetitors {
		names = names[:in.MaxCompetitors]
	}
	logger.Info("Discovered competitors", "count", len(names), "competitors", names)

	result := &Result{BusinessIdea: in.BusinessIdea, Competitors: []Competitor{}}
	if len(names) == 0 {
		r.notify(workflow.Event{Stage: workflow.StageTerminal, Message: "no competitors found"})
		return result, nil
	}

	r.notify(workflow.Event{Stage: workflow.StageDispatch, Message: fmt.Sprintf("researching %d competitors", len(names))})
	done = workflow.Time(Pipeline, workflow.StageUnit)
	outcomes := workflow.FanOut(ctx, names, in.Concurrency, func(ctx context.Context, _ int, name string) (Competitor, error) {
		return r.runUnit(ctx, in, name)
	})
	done()

	r.notify(workflow.Event{Stage: workflow.StageAggregation, Message: "aggregating competitors"})
	values, errs := workflow.Gather(outcomes)
	for _, c := range values {
		metrics.UnitsTotal.WithLabelValues(Pipeline, metrics.OutcomeSuccess).Inc()
		result.Competitors = append(result.Competitors, c)
	}
	for i, err := range errs {
		metrics.UnitsTotal.WithLabelValues(Pipeline, metrics.OutcomeFailure).Inc()
		logger.Error("Competitor research failed", "competitor", names[i], "error", err)
		result.Failed = append(result.Failed, workflow.Failure(names[i], err))
	}
	sort.SliceStable(result.Competitors, func(a, b int) bool {
		return strings.ToLower(result.Competitors[a].Name) < strings.ToLower(result.Competitors[b].Name)
	})
	sort.SliceStable(result.Failed, func(a, b int) bool {
		return result.Failed[a].Entity < result.Failed[b].Entity
	})

	if in.SWOT && r.SWOT != nil {
		r.analyzeSWOT(ctx, in, result.Competitors)
	}

	if len(result.Competitors) > 0 {
		summary, err := r.executiveSummary(ctx, in, result.Competitors)
		if err != nil {
			logger.Error("Executive summary failed", "error", err)
			r.notify(workflow.Event{Stage: workflow.StageTerminal, Entity: summaryEntity, Message: "executive summary failed", Err: err.Error()})
			result.Failed = append(result.Failed, workflow.UnitFailure{Entity: summaryEntity, Stage: workflow.StageTerminal, Error: err.Error()})
		}
		result.ExecutiveSummary = summary
	}

	r.notify(workflow.Event{Stage: workflow.StageTerminal, Message: fmt.Sprintf("researched %d competitors, %d failed", len(result.Competitors), len(result.Failed))})
	logger.Info("Competitor research complete", "competitors", len(result.Competitors), "failed", len(result.Failed))
	return result, nil
}

func (r *Researcher) discover(ctx context.Context, in Input) ([]string, error) {
	limits := in.Limits.Competition

	system, err := r.Prompts.Render(prompts.CompetitorQueries, map[string]any{
		"BusinessIdea": in.BusinessIdea,
		"NumQueries":   limits.Queries,
	})
	if err != nil {
		return nil, err
	}
	queries, err := r.LLM.GenerateQueries(ctx, "competitor_queries", system,
		"Generate search queries that will help with researching competitors for the inputted service description.", limits.Queries)
	if err != nil {
		return nil, err
	}

	batches, err := r.Search.Search(ctx, queries, limits.Results, search.Options{})
	if err != nil {
		return nil, err
	}

	system, err = r.Prompts.Render(prompts.CompetitorNames, map[string]any{"BusinessIdea": in.BusinessIdea})
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for start := 0; start < len(batches); start += batchesPerGroup {
		group := batches[start:min(start+batchesPerGroup, len(batches))]
		set, err := sources.Deduplicate(group, sources.Options{MaxTokensPerSource: limits.TokensPerSource})
		if err != nil {
			return nil, err
		}
		r.notify(workflow.Event{Stage: workflow.StageDiscovery, Message: "analyzing search results", Sources: set})

		var list nameList
		err = r.LLM.Generate(ctx, llm.Request{
			Name:        "competitor_names",
			System:      system,
			Parts:       set.Parts(),
			Instruction: "Analyze the search results and return a list of potential competitor names.",
			Schema:      nameListSchema,
		}, &list)
		if err != nil {
			return nil, err
		}

		for _, name := range list.Competitors {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Researcher) analyzeSWOT(ctx context.Context, in Input, competitors []Competitor) {
	outcomes := workflow.FanOut(ctx, competitors, in.Concurrency, func(ctx context.Context, _ int, c Competitor) (*swot.Analysis, error) {
		return r.SWOT.Analyze(ctx, swot.Subject{Name: c.Name, Report: c.Report})
	})
	for _, o := range outcomes {
		if o.Err != nil {
			r.logger().Warn("SWOT analysis failed", "competitor", competitors[o.Index].Name, "error", o.Err)
			r.notify(workflow.Event{Stage: workflow.StageAggregation, Entity: competitors[o.Index].Name, Message: "swot analysis failed", Err: o.Err.Error()})
			continue
		}
		competitors[o.Index].SWOT = o.Value
	}
}

func (r *Researcher) executiveSummary(ctx context.Context, in Input, competitors []Competitor) (string, error) {
	var reports strings.Builder
	for _, c := range competitors {
		fmt.Fprintf(&reports, "## %s\n\n%s\n\n", c.Name, c.Report)
	}

	system, err := r.Prompts.Render(prompts.ExecutiveSummary, map[string]any{
		"BusinessIdea": in.BusinessIdea,
		"Reports":      reports.String(),
	})
	if err != nil {
		return "", err
	}
	return r.LLM.Text(ctx, llm.Request{
		Name:        "executive_summary",
		System:      system,
		Instruction: "Write the executive summary in markdown.",
	})
}

func (r *Researcher) notify(e workflow.Event) {
	e.Pipeline = Pipeline
	r.Observer.Notify(e)
}

func (r *Researcher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Researcher) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
