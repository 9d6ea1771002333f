// Package landscape researches a business idea from six angles and
// consolidates the topical reports into one landscape report.
package landscape

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
	"github.com/mikeboe/market-research/pkg/report"
	"github.com/mikeboe/market-research/pkg/workflow"
)

const Pipeline = "landscape"

// finalEntity names the consolidated report in Landscape.Failed.
const finalEntity = "final_report"

var (
	ErrEmptyBusinessIdea = errors.New("business idea is empty")
	// ErrNoReports is returned when every topical report failed.
	ErrNoReports = errors.New("no topical report completed")
)

// ReportWriter writes one topical report.
type ReportWriter interface {
	Run(ctx context.Context, in report.Input) (*report.Report, error)
}

// Input configures a landscape run. Positive fields of Plan and Section
// override the default limits of every topical report; zero keeps the
// default and negative values are rejected.
type Input struct {
	BusinessIdea string        `json:"business_idea"`
	Plan         config.Limits `json:"plan"`
	Section      config.Limits `json:"section"`
	// Concurrency caps the topical reports written at once.
	Concurrency int `json:"concurrency,omitempty"`
	// SectionConcurrency caps the sections researched at once per report.
	SectionConcurrency int `json:"section_concurrency,omitempty"`
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.BusinessIdea) == "" {
		return ErrEmptyBusinessIdea
	}
	if in.Concurrency < 0 || in.SectionConcurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", config.ErrInvalidLimit)
	}
	if err := in.Plan.ValidateOverride("plan"); err != nil {
		return err
	}
	return in.Section.ValidateOverride("section")
}

// TopicReport is the outcome of one topic.
type TopicReport struct {
	Field  string         `json:"field"`
	Title  string         `json:"title"`
	Report *report.Report `json:"report"`
}

type Landscape struct {
	BusinessIdea string                 `json:"business_idea"`
	Reports      []TopicReport          `json:"reports"`
	FinalReport  string                 `json:"final_report"`
	Failed       []workflow.UnitFailure `json:"failed,omitempty"`
}

type Researcher struct {
	LLM      *llm.Client
	Prompts  *prompts.Set
	Writer   ReportWriter
	Topics   []Topic
	Logger   *slog.Logger
	Observer workflow.Observer
}

func NewResearcher(client *llm.Client, set *prompts.Set, writer ReportWriter) *Researcher {
	return &Researcher{
		LLM:     client,
		Prompts: set,
		Writer:  writer,
		Topics:  Topics,
		Logger:  slog.Default(),
	}
}

type finalReport struct {
	FinalReport string `json:"final_report"`
}

const finalReportSchema = `{
  "type": "object",
  "properties": {
    "final_report": {"type": "string", "description": "The consolidated landscape report in markdown format."}
  },
  "required": ["final_report"]
}`

// Run writes every topical report concurrently and consolidates the
// completed ones. Reports keep the order of Topics. When consolidation
// fails the topical reports are still returned, FinalReport stays empty
// and the failure is listed in Failed.
func (r *Researcher) Run(ctx context.Context, in Input) (*Landscape, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	logger := r.logger()
	logger.Info("Starting landscape research", "business_idea", in.BusinessIdea, "topics", len(r.Topics))

	r.notify(workflow.Event{Stage: workflow.StageDispatch, Message: fmt.Sprintf("writing %d topical reports", len(r.Topics))})
	done := workflow.Time(Pipeline, workflow.StageUnit)
	outcomes := workflow.FanOut(ctx, r.Topics, in.Concurrency, func(ctx context.Context, _ int, t Topic) (*report.Report, error) {
		r.notify(workflow.Event{Stage: workflow.StageUnit, Entity: t.Field, Message: "writing " + t.Title})
		rin := report.DefaultInput(t.Topic(in.BusinessIdea), t.Structure())
		rin.Plan = rin.Plan.Merge(in.Plan)
		rin.Section = rin.Section.Merge(in.Section)
		rin.Concurrency = in.SectionConcurrency
		rep, err := r.Writer.Run(ctx, rin)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rep.FinalReport) == "" {
			return nil, fmt.Errorf("%s: report is empty", t.Title)
		}
		return rep, nil
	})
	done()

	values, errs := workflow.Gather(outcomes)
	result := &Landscape{BusinessIdea: in.BusinessIdea, Reports: []TopicReport{}}
	for i, t := range r.Topics {
		if rep, ok := values[i]; ok {
			metrics.UnitsTotal.WithLabelValues(Pipeline, metrics.OutcomeSuccess).Inc()
			result.Reports = append(result.Reports, TopicReport{Field: t.Field, Title: t.Title, Report: rep})
			continue
		}
		metrics.UnitsTotal.WithLabelValues(Pipeline, metrics.OutcomeFailure).Inc()
		logger.Error("Topical report failed", "topic", t.Field, "error", errs[i])
		result.Failed = append(result.Failed, workflow.Failure(t.Field, errs[i]))
	}
	if len(result.Reports) == 0 {
		return nil, ErrNoReports
	}

	r.notify(workflow.Event{Stage: workflow.StageAggregation, Message: "consolidating reports"})
	final, err := r.consolidate(ctx, in.BusinessIdea, result.Reports)
	if err != nil {
		logger.Error("Consolidation failed", "error", err)
		r.notify(workflow.Event{Stage: workflow.StageAggregation, Entity: finalEntity, Message: "consolidation failed", Err: err.Error()})
		result.Failed = append(result.Failed, workflow.UnitFailure{Entity: finalEntity, Stage: workflow.StageAggregation, Error: err.Error()})
	}
	result.FinalReport = final

	r.notify(workflow.Event{Stage: workflow.StageTerminal, Message: fmt.Sprintf("consolidated %d reports, %d failed", len(result.Reports), len(result.Failed))})
	logger.Info("Landscape research complete", "reports", len(result.Reports), "failed", len(result.Failed))
	return result, nil
}

func (r *Researcher) consolidate(ctx context.Context, businessIdea string, reports []TopicReport) (string, error) {
	var b strings.Builder
	for _, t := range reports {
		fmt.Fprintf(&b, "# %s\n\n%s\n\n", t.Title, t.Report.FinalReport)
	}

	system, err := r.Prompts.Render(prompts.LandscapeFinal, map[string]any{
		"BusinessIdea": businessIdea,
		"Reports":      b.String(),
	})
	if err != nil {
		return "", err
	}

	var out finalReport
	err = r.LLM.Generate(ctx, llm.Request{
		Name:        "landscape_final",
		System:      system,
		Instruction: "Write the final report.",
		Schema:      finalReportSchema,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.FinalReport, nil
}

func (r *Researcher) notify(e workflow.Event) {
	e.Pipeline = Pipeline
	r.Observer.Notify(e)
}

func (r *Researcher) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
