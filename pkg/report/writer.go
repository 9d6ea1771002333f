// Package report plans a report on a topic, researches its sections
// concurrently and compiles the final markdown.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/metrics"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/sources"
	"github.com/mikeboe/market-research/pkg/workflow"
)

const Pipeline = "report"

// Stages of a single section unit.
const (
	StageSectionQueries workflow.Stage = "section_queries"
	StageSectionSearch  workflow.Stage = "section_search"
	StageSectionWrite   workflow.Stage = "section_write"
	StageFinalWrite     workflow.Stage = "final_write"
)

var ErrEmptyTopic = errors.New("report topic is empty")

// Input configures one report run.
type Input struct {
	Topic     string `json:"topic"`
	Structure string `json:"structure"`
	// Plan bounds the research done to plan the sections.
	Plan config.Limits `json:"plan"`
	// Section bounds the research done per section.
	Section     config.Limits `json:"section"`
	Concurrency int           `json:"concurrency,omitempty"`
}

var (
	DefaultPlanLimits    = config.Limits{Queries: 2, Results: 5, TokensPerSource: 1000}
	DefaultSectionLimits = config.Limits{Queries: 2, Results: 5, TokensPerSource: 5000}
)

func DefaultInput(topic, structure string) Input {
	return Input{
		Topic:     topic,
		Structure: structure,
		Plan:      DefaultPlanLimits,
		Section:   DefaultSectionLimits,
	}
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.Topic) == "" {
		return ErrEmptyTopic
	}
	if err := in.Plan.Validate("plan"); err != nil {
		return err
	}
	if err := in.Section.Validate("section"); err != nil {
		return err
	}
	if in.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", config.ErrInvalidLimit)
	}
	return nil
}

// Report is the compiled output of a run. Sections are in plan order;
// sections that failed keep an empty Content and are listed in Failed.
type Report struct {
	Topic       string                 `json:"topic"`
	Sections    []Section              `json:"sections"`
	FinalReport string                 `json:"final_report"`
	Sources     []string               `json:"sources"`
	Failed      []workflow.UnitFailure `json:"failed,omitempty"`
}

type Writer struct {
	LLM      *llm.Client
	Prompts  *prompts.Set
	Search   search.Searcher
	Logger   *slog.Logger
	Observer workflow.Observer
}

func NewWriter(client *llm.Client, set *prompts.Set, searcher search.Searcher) *Writer {
	return &Writer{
		LLM:     client,
		Prompts: set,
		Search:  searcher,
		Logger:  slog.Default(),
	}
}

type plan struct {
	Sections []Section `json:"sections"`
}

const planSchema = `{
  "type": "object",
  "properties": {
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Name for this section of the report."},
          "description": {"type": "string", "description": "Brief overview of the main topics and concepts to be covered in this section."},
          "research": {"type": "boolean", "description": "Whether to perform web research for this section of the report."},
          "content": {"type": "string", "description": "The content of the section."}
        },
        "required": ["name", "description", "research"]
      }
    }
  },
  "required": ["sections"]
}`

// sectionResult is what a section unit publishes.
type sectionResult struct {
	section Section
	urls    []string
}

// Run plans the report, writes the research sections concurrently, then
// writes the remaining sections with the research sections as context and
// compiles everything in plan order. A failing section is recorded in
// Report.Failed and left out of the final text.
func (w *Writer) Run(ctx context.Context, in Input) (*Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	logger := w.logger()
	logger.Info("Starting report", "topic", in.Topic)

	done := workflow.Time(Pipeline, workflow.StageDiscovery)
	planned, planSources, err := w.plan(ctx, in)
	done()
	if err != nil {
		w.notify(workflow.Event{Stage: workflow.StageDiscovery, Message: "planning failed", Err: err.Error()})
		return nil, &workflow.StageError{Entity: in.Topic, Stage: workflow.StageDiscovery, Err: err}
	}
	logger.Info("Planned report", "sections", len(planned))

	report := &Report{Topic: in.Topic, Sections: []Section{}, Sources: planSources}
	if len(planned) == 0 {
		w.notify(workflow.Event{Stage: workflow.StageTerminal, Message: "no sections planned"})
		return report, nil
	}

	// research and final hold plan indices.
	var research, final []int
	for i, s := range planned {
		if s.Research {
			research = append(research, i)
		} else {
			final = append(final, i)
		}
	}
	written := make(map[int]string, len(planned))

	w.notify(workflow.Event{Stage: workflow.StageDispatch, Message: fmt.Sprintf("researching %d sections", len(research))})
	done = workflow.Time(Pipeline, workflow.StageUnit)
	outcomes := workflow.FanOut(ctx, research, in.Concurrency, func(ctx context.Context, _ int, idx int) (sectionResult, error) {
		return w.researchSection(ctx, in, planned[idx])
	})
	done()
	report.Sources = w.collect(report, outcomes, planned, research, written, report.Sources)

	w.notify(workflow.Event{Stage: workflow.StageAggregation, Message: "gathering researched sections"})
	researched := make([]Section, len(research))
	for i, idx := range research {
		researched[i] = planned[idx]
		researched[i].Content = written[idx]
	}
	researchContext := FormatSections(researched)

	if len(final) > 0 {
		w.notify(workflow.Event{Stage: workflow.StageDispatch, Message: fmt.Sprintf("writing %d final sections", len(final))})
		done = workflow.Time(Pipeline, StageFinalWrite)
		finals := workflow.FanOut(ctx, final, in.Concurrency, func(ctx context.Context, _ int, idx int) (sectionResult, error) {
			return w.writeFinalSection(ctx, planned[idx], researchContext)
		})
		done()
		report.Sources = w.collect(report, finals, planned, final, written, report.Sources)
	}

	report.Sections, report.FinalReport = Assemble(planned, written)
	w.notify(workflow.Event{Stage: workflow.StageTerminal, Message: fmt.Sprintf("wrote %d of %d sections", len(written), len(planned))})
	logger.Info("Report complete", "sections", len(written), "failed", len(report.Failed))
	return report, nil
}

// collect stores the content of each successful unit in written under its
// plan index and records the failures.
func (w *Writer) collect(report *Report, outcomes []workflow.Outcome[sectionResult], planned []Section, indices []int, written map[int]string, urls []string) []string {
	values, errs := workflow.Gather(outcomes)
	for i, idx := range indices {
		if v, ok := values[i]; ok {
			metrics.UnitsTotal.WithLabelValues(Pipeline, metrics.OutcomeSuccess).Inc()
			written[idx] = v.section.Content
			urls = append(urls, v.urls...)
			continue
		}
		err := errs[i]
		metrics.UnitsTotal.WithLabelValues(Pipeline, metrics.OutcomeFailure).Inc()
		w.logger().Error("Section failed", "section", planned[idx].Name, "error", err)
		report.Failed = append(report.Failed, workflow.Failure(planned[idx].Name, err))
	}
	return dedupURLs(urls)
}

func (w *Writer) plan(ctx context.Context, in Input) ([]Section, []string, error) {
	system, err := w.Prompts.Render(prompts.ReportPlanQueries, map[string]any{
		"Topic":      in.Topic,
		"Structure":  in.Structure,
		"NumQueries": in.Plan.Queries,
	})
	if err != nil {
		return nil, nil, err
	}
	queries, err := w.LLM.GenerateQueries(ctx, "report_plan_queries", system,
		"Generate search queries that will help with planning the sections of the report.", in.Plan.Queries)
	if err != nil {
		return nil, nil, err
	}

	set, err := w.searchSources(ctx, queries, in.Plan, false, "")
	if err != nil {
		return nil, nil, err
	}

	system, err = w.Prompts.Render(prompts.ReportPlan, map[string]any{
		"Topic":     in.Topic,
		"Structure": in.Structure,
		"Context":   set.Text(),
	})
	if err != nil {
		return nil, nil, err
	}
	var p plan
	err = w.LLM.Generate(ctx, llm.Request{
		Name:        "report_plan",
		System:      system,
		Instruction: "Generate the sections of the report. Your response must include a 'sections' field containing a list of sections. Each section must have: name, description, research and content fields.",
		Schema:      planSchema,
	}, &p)
	if err != nil {
		return nil, nil, err
	}

	sections := make([]Section, 0, len(p.Sections))
	for _, s := range p.Sections {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		s.Content = ""
		sections = append(sections, s)
	}
	return sections, set.URLs(), nil
}

func (w *Writer) researchSection(ctx context.Context, in Input, s Section) (sectionResult, error) {
	fail := func(stage workflow.Stage, err error) (sectionResult, error) {
		return sectionResult{}, &workflow.StageError{Entity: s.Name, Stage: stage, Err: err}
	}

	w.notify(workflow.Event{Stage: workflow.StageUnit, Entity: s.Name, Message: string(StageSectionQueries)})
	system, err := w.Prompts.Render(prompts.SectionQueries, map[string]any{
		"Topic":      s.Description,
		"NumQueries": in.Section.Queries,
	})
	if err != nil {
		return fail(StageSectionQueries, err)
	}
	queries, err := w.LLM.GenerateQueries(ctx, "section_queries", system,
		"Generate goal oriented search queries on the provided topic.", in.Section.Queries)
	if err != nil {
		return fail(StageSectionQueries, err)
	}

	w.notify(workflow.Event{Stage: workflow.StageUnit, Entity: s.Name, Message: string(StageSectionSearch)})
	set, err := w.searchSources(ctx, queries, in.Section, true, s.Name)
	if err != nil {
		return fail(StageSectionSearch, err)
	}

	w.notify(workflow.Event{Stage: workflow.StageUnit, Entity: s.Name, Message: string(StageSectionWrite)})
	system, err = w.Prompts.Render(prompts.SectionWriter, map[string]any{
		"Topic":   s.Description,
		"Context": set.Text(),
	})
	if err != nil {
		return fail(StageSectionWrite, err)
	}
	content, err := w.LLM.Text(ctx, llm.Request{
		Name:        "section_writer",
		System:      system,
		Instruction: "Generate a report section based on the provided sources.",
	})
	if err != nil {
		return fail(StageSectionWrite, err)
	}

	s.Content = content
	return sectionResult{section: s, urls: set.URLs()}, nil
}

func (w *Writer) writeFinalSection(ctx context.Context, s Section, completed string) (sectionResult, error) {
	w.notify(workflow.Event{Stage: workflow.StageUnit, Entity: s.Name, Message: string(StageFinalWrite)})
	system, err := w.Prompts.Render(prompts.FinalSectionWriter, map[string]any{
		"Topic":   s.Description,
		"Context": completed,
	})
	if err != nil {
		return sectionResult{}, &workflow.StageError{Entity: s.Name, Stage: StageFinalWrite, Err: err}
	}
	content, err := w.LLM.Text(ctx, llm.Request{
		Name:        "final_section_writer",
		System:      system,
		Instruction: "Generate a report section based on the provided sources.",
	})
	if err != nil {
		return sectionResult{}, &workflow.StageError{Entity: s.Name, Stage: StageFinalWrite, Err: err}
	}
	s.Content = content
	return sectionResult{section: s}, nil
}

func (w *Writer) searchSources(ctx context.Context, queries []string, limits config.Limits, raw bool, entity string) (*sources.SourceSet, error) {
	batches, err := w.Search.Search(ctx, queries, limits.Results, search.Options{})
	if err != nil {
		return nil, err
	}
	set, err := sources.Deduplicate(batches, sources.Options{
		MaxTokensPerSource: limits.TokensPerSource,
		IncludeRawContent:  raw,
	})
	if err != nil {
		return nil, err
	}
	stage := workflow.StageUnit
	if entity == "" {
		stage = workflow.StageDiscovery
	}
	w.notify(workflow.Event{Stage: stage, Entity: entity, Message: "sources collected", Sources: set})
	return set, nil
}

func dedupURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func (w *Writer) notify(e workflow.Event) {
	e.Pipeline = Pipeline
	w.Observer.Notify(e)
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
