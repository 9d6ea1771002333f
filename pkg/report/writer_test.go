package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/llm/llmtest"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/search/searchtest"
	"github.com/mikeboe/market-research/pkg/workflow"
)

const (
	queriesReply = `{"reasoning": "r", "queries": ["first query", "second query", "third query"]}`
	planReply    = `{"sections": [
  {"name": "Introduction", "description": "Introduce the market", "research": false, "content": "ignored"},
  {"name": "Market Size", "description": "How big the market is", "research": true},
  {"name": "Competitors", "description": "Who competes in the market", "research": true},
  {"name": "Conclusion", "description": "Wrap up", "research": false}
]}`
)

func sectionWriter(call llmtest.Call) (string, error) {
	switch {
	case strings.Contains(call.System, "How big the market is"):
		return "## Market Size\nLarge.", nil
	case strings.Contains(call.System, "Who competes in the market"):
		return "## Competitors\nMany.", nil
	}
	return "", errors.New("unexpected section")
}

func finalWriter(call llmtest.Call) (string, error) {
	if strings.Contains(call.System, "Section topic:\nIntroduce the market") {
		return "## Introduction\nHello.", nil
	}
	return "## Conclusion\nBye.", nil
}

func scripted(before func(m *llmtest.Model)) *llmtest.Model {
	m := llmtest.New()
	if before != nil {
		before(m)
	}
	return m.
		Reply("planning a report", queriesReply).
		Reply("producing the section plan", planReply).
		Reply("crafting targeted web search queries", queriesReply).
		On("writing one section of a report", sectionWriter).
		On("synthesizing the remaining section", finalWriter)
}

func TestRun(t *testing.T) {
	model := scripted(nil)
	searcher := &searchtest.Searcher{ResultsPerQuery: 2}
	w := NewWriter(llm.NewClient(model, 1), prompts.Default(), searcher)

	report, err := w.Run(context.Background(), DefaultInput("Vertical farming", "## Market\n## Competitors"))
	require.NoError(t, err)

	assert.Equal(t, "## Introduction\nHello.\n\n## Market Size\nLarge.\n\n## Competitors\nMany.\n\n## Conclusion\nBye.", report.FinalReport)
	require.Len(t, report.Sections, 4)
	assert.Equal(t, "Introduction", report.Sections[0].Name)
	assert.Empty(t, report.Failed)
	assert.NotEmpty(t, report.Sources)

	// plan: 2 queries, each research section: 2 queries
	assert.Len(t, searcher.Queries(), 2+2*2)
	assert.Equal(t, 2, model.CallsMatching("writing one section of a report"))
	assert.Equal(t, 2, model.CallsMatching("synthesizing the remaining section"))

	for _, c := range model.Calls() {
		switch {
		case strings.Contains(c.System, "producing the section plan"):
			assert.Contains(t, c.System, "Text content from source")
			assert.NotContains(t, c.System, "Full source content")
		case strings.Contains(c.System, "writing one section of a report"):
			assert.Contains(t, c.System, "Full source content limited to 5000 tokens")
		case strings.Contains(c.System, "synthesizing the remaining section"):
			assert.Contains(t, c.System, "Section 1: Market Size")
			assert.Contains(t, c.System, "Large.")
			assert.Contains(t, c.System, "Section 2: Competitors")
		}
	}
}

func TestRunIsolatesFailingSection(t *testing.T) {
	model := scripted(func(m *llmtest.Model) {
		m.Fail("writing one section of a report from web research.\n\nSection topic:\nWho competes", errors.New("overloaded"))
	})
	w := NewWriter(llm.NewClient(model, 1), prompts.Default(), &searchtest.Searcher{ResultsPerQuery: 1})

	report, err := w.Run(context.Background(), DefaultInput("Vertical farming", ""))
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "Competitors", report.Failed[0].Entity)
	assert.Equal(t, StageSectionWrite, report.Failed[0].Stage)
	assert.NotContains(t, report.FinalReport, "Competitors")
	assert.Contains(t, report.FinalReport, "## Market Size")
	assert.Contains(t, report.FinalReport, "## Conclusion")

	for _, c := range model.Calls() {
		if strings.Contains(c.System, "synthesizing the remaining section") {
			assert.Contains(t, c.System, "[Not yet written]")
		}
	}
}

func TestRunKeepsSectionsWithSameName(t *testing.T) {
	model := llmtest.New().
		Reply("planning a report", queriesReply).
		Reply("producing the section plan", `{"sections": [
  {"name": "Overview", "description": "How big the market is", "research": true},
  {"name": "Overview", "description": "Introduce the market", "research": false}
]}`).
		Reply("crafting targeted web search queries", queriesReply).
		On("writing one section of a report", sectionWriter).
		On("synthesizing the remaining section", finalWriter)
	w := NewWriter(llm.NewClient(model, 1), prompts.Default(), &searchtest.Searcher{ResultsPerQuery: 1})

	report, err := w.Run(context.Background(), DefaultInput("Vertical farming", ""))
	require.NoError(t, err)

	require.Len(t, report.Sections, 2)
	assert.Equal(t, "## Market Size\nLarge.", report.Sections[0].Content)
	assert.Equal(t, "## Introduction\nHello.", report.Sections[1].Content)
	assert.Equal(t, "## Market Size\nLarge.\n\n## Introduction\nHello.", report.FinalReport)
}

func TestRunPlanFailure(t *testing.T) {
	planErr := errors.New("quota")
	model := llmtest.New().
		Reply("planning a report", queriesReply).
		Fail("producing the section plan", planErr)
	w := NewWriter(llm.NewClient(model, 1), prompts.Default(), &searchtest.Searcher{ResultsPerQuery: 1})

	_, err := w.Run(context.Background(), DefaultInput("Vertical farming", ""))
	require.ErrorIs(t, err, planErr)

	var se *workflow.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, workflow.StageDiscovery, se.Stage)
}

func TestRunEmptyPlan(t *testing.T) {
	model := llmtest.New().
		Reply("planning a report", queriesReply).
		Reply("producing the section plan", `{"sections": []}`)
	w := NewWriter(llm.NewClient(model, 1), prompts.Default(), &searchtest.Searcher{ResultsPerQuery: 1})

	report, err := w.Run(context.Background(), DefaultInput("Vertical farming", ""))
	require.NoError(t, err)
	assert.Empty(t, report.Sections)
	assert.Empty(t, report.FinalReport)
}

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantErr bool
	}{
		{"defaults", func(*Input) {}, false},
		{"empty topic", func(in *Input) { in.Topic = " " }, true},
		{"zero plan queries", func(in *Input) { in.Plan.Queries = 0 }, true},
		{"zero section tokens", func(in *Input) { in.Section.TokensPerSource = 0 }, true},
		{"negative concurrency", func(in *Input) { in.Concurrency = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := DefaultInput("topic", "")
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
