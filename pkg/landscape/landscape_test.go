package landscape

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/llm/llmtest"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/report"
	"github.com/mikeboe/market-research/pkg/search/searchtest"
	"github.com/mikeboe/market-research/pkg/workflow"
)

// fakeWriter answers every topic with a one-line report unless the topic
// contains a key of fail.
type fakeWriter struct {
	fail map[string]error

	mu     sync.Mutex
	inputs []report.Input
}

func (f *fakeWriter) Run(_ context.Context, in report.Input) (*report.Report, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	for match, err := range f.fail {
		if strings.Contains(in.Topic, match) {
			return nil, err
		}
	}
	title := strings.SplitN(in.Structure, "\n", 2)[0]
	return &report.Report{Topic: in.Topic, FinalReport: "Findings for " + title}, nil
}

func TestRun(t *testing.T) {
	model := llmtest.New().Reply("consolidating six research reports", `{"final_report": "# Landscape"}`)
	writer := &fakeWriter{}
	r := NewResearcher(llm.NewClient(model, 1), prompts.Default(), writer)

	in := Input{BusinessIdea: "Solar powered kiosks", Section: config.Limits{TokensPerSource: 2000}}
	result, err := r.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "# Landscape", result.FinalReport)
	require.Len(t, result.Reports, 6)
	assert.Empty(t, result.Failed)
	for i, tr := range result.Reports {
		assert.Equal(t, Topics[i].Field, tr.Field)
	}

	require.Len(t, writer.inputs, 6)
	for _, rin := range writer.inputs {
		assert.Contains(t, rin.Topic, "Solar powered kiosks")
		assert.Equal(t, report.DefaultPlanLimits, rin.Plan)
		assert.Equal(t, 2000, rin.Section.TokensPerSource)
		assert.Equal(t, report.DefaultSectionLimits.Queries, rin.Section.Queries)
	}

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "# Market Analysis\n\nFindings for # Market Analysis Report Structure")
	assert.Contains(t, calls[0].System, "# Legal Compliance")
}

func TestRunOmitsFailedTopic(t *testing.T) {
	model := llmtest.New().Reply("consolidating six research reports", `{"final_report": "# Landscape"}`)
	writer := &fakeWriter{fail: map[string]error{"regulatory and legal": errors.New("search down")}}
	r := NewResearcher(llm.NewClient(model, 1), prompts.Default(), writer)

	result, err := r.Run(context.Background(), Input{BusinessIdea: "Solar powered kiosks"})
	require.NoError(t, err)

	assert.Len(t, result.Reports, 5)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "legal_compliance_report", result.Failed[0].Entity)
	assert.NotContains(t, model.Calls()[0].System, "# Legal Compliance\n")
}

func TestRunAllTopicsFail(t *testing.T) {
	writer := &fakeWriter{fail: map[string]error{"": errors.New("down")}}
	r := NewResearcher(llm.NewClient(llmtest.New(), 1), prompts.Default(), writer)

	_, err := r.Run(context.Background(), Input{BusinessIdea: "idea"})
	assert.ErrorIs(t, err, ErrNoReports)
}

func TestRunRejectsEmptyIdea(t *testing.T) {
	r := NewResearcher(llm.NewClient(llmtest.New(), 1), prompts.Default(), &fakeWriter{})
	_, err := r.Run(context.Background(), Input{BusinessIdea: " "})
	assert.ErrorIs(t, err, ErrEmptyBusinessIdea)
}

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr error
	}{
		{"defaults", Input{BusinessIdea: "idea"}, nil},
		{"overrides", Input{BusinessIdea: "idea", Plan: config.Limits{Queries: 3}, Section: config.Limits{TokensPerSource: 2000}}, nil},
		{"empty idea", Input{}, ErrEmptyBusinessIdea},
		{"negative plan", Input{BusinessIdea: "idea", Plan: config.Limits{Queries: -5, Results: -1, TokensPerSource: -100}}, config.ErrInvalidLimit},
		{"negative section", Input{BusinessIdea: "idea", Section: config.Limits{Results: -1}}, config.ErrInvalidLimit},
		{"negative concurrency", Input{BusinessIdea: "idea", SectionConcurrency: -1}, config.ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunKeepsReportsWhenConsolidationFails(t *testing.T) {
	model := llmtest.New().Fail("consolidating six research reports", errors.New("rate limited"))
	r := NewResearcher(llm.NewClient(model, 1), prompts.Default(), &fakeWriter{})

	result, err := r.Run(context.Background(), Input{BusinessIdea: "Solar powered kiosks"})
	require.NoError(t, err)

	assert.Len(t, result.Reports, 6)
	assert.Empty(t, result.FinalReport)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "final_report", result.Failed[0].Entity)
	assert.Equal(t, workflow.StageAggregation, result.Failed[0].Stage)
	assert.Contains(t, result.Failed[0].Error, "rate limited")
}

func TestRunWithReportWriter(t *testing.T) {
	model := llmtest.New().
		Reply("planning a report", `{"reasoning": "r", "queries": ["q"]}`).
		Reply("producing the section plan", `{"sections": [{"name": "Overview", "description": "Overview of the topic", "research": true}]}`).
		Reply("crafting targeted web search queries", `{"reasoning": "r", "queries": ["q"]}`).
		Reply("writing one section of a report", "## Overview\nText.").
		Reply("consolidating six research reports", `{"final_report": "# Landscape"}`)
	client := llm.NewClient(model, 1)
	writer := report.NewWriter(client, prompts.Default(), &searchtest.Searcher{ResultsPerQuery: 1})
	r := NewResearcher(client, prompts.Default(), writer)
	r.Topics = Topics[:2]

	result, err := r.Run(context.Background(), Input{BusinessIdea: "idea", Concurrency: 1})
	require.NoError(t, err)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, "## Overview\nText.", result.Reports[0].Report.FinalReport)
}
