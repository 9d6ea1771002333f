package swot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/llm/llmtest"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/search/searchtest"
)

const swotReply = `{
  "strengths": ["Strong brand"],
  "weaknesses": ["Slow support"],
  "opportunities": ["SMB market"],
  "threats": ["Price war"],
  "report": "## SWOT"
}`

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantQuery string
	}{
		{"Trustpilot", "trustpilot", "trustpilot Acme"},
		{"Google reviews", "google reviews", "google reviews Acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.New().
				Reply("deciding where to find customer reviews", `{"analysis": "online vendor", "review_source": "`+tt.source+`"}`).
				Reply("writing a SWOT analysis", swotReply)
			searcher := &searchtest.Searcher{ResultsPerQuery: 2}
			analyzer := NewAnalyzer(llm.NewClient(model, 1), prompts.Default(), searcher)

			analysis, err := analyzer.Analyze(context.Background(), Subject{Name: "Acme", Report: "Acme sells widgets online"})
			require.NoError(t, err)

			assert.Equal(t, []string{tt.wantQuery}, searcher.Queries())
			assert.Equal(t, tt.source, analysis.ReviewSource)
			assert.Equal(t, []string{"Strong brand"}, analysis.Strengths)
			assert.Equal(t, []string{"Price war"}, analysis.Threats)
			assert.Len(t, analysis.Sources, 2)
		})
	}
}

func TestAnalyzeRejectsUnknownReviewSource(t *testing.T) {
	model := llmtest.New().
		Reply("deciding where to find customer reviews", `{"analysis": "?", "review_source": "yelp"}`)
	analyzer := NewAnalyzer(llm.NewClient(model, 1), prompts.Default(), &searchtest.Searcher{})

	_, err := analyzer.Analyze(context.Background(), Subject{Name: "Acme"})
	assert.ErrorIs(t, err, llm.ErrMalformedOutput)
}

func TestAnalyzeSearchFailure(t *testing.T) {
	searchErr := errors.New("search down")
	model := llmtest.New().
		Reply("deciding where to find customer reviews", `{"analysis": "a", "review_source": "trustpilot"}`)
	searcher := &searchtest.Searcher{Fail: map[string]error{"trustpilot": searchErr}}
	analyzer := NewAnalyzer(llm.NewClient(model, 1), prompts.Default(), searcher)

	_, err := analyzer.Analyze(context.Background(), Subject{Name: "Acme"})
	assert.ErrorIs(t, err, searchErr)
}
