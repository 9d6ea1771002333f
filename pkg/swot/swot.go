// Package swot writes SWOT analyses of competitors from their profile and
// customer review search results.
package swot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/prompts"
	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/sources"
)

const (
	ReviewSourceTrustpilot    = "trustpilot"
	ReviewSourceGoogleReviews = "google reviews"
)

// Subject is the company being analyzed.
type Subject struct {
	Name   string
	Report string
}

type Analysis struct {
	ReviewSource  string   `json:"review_source"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
	Report        string   `json:"report"`
	Sources       []string `json:"sources,omitempty"`
}

type Analyzer struct {
	LLM             *llm.Client
	Prompts         *prompts.Set
	Search          search.Searcher
	TokensPerSource int
	Logger          *slog.Logger
}

func NewAnalyzer(client *llm.Client, set *prompts.Set, searcher search.Searcher) *Analyzer {
	return &Analyzer{
		LLM:             client,
		Prompts:         set,
		Search:          searcher,
		TokensPerSource: 1000,
		Logger:          slog.Default(),
	}
}

type reviewDecision struct {
	Analysis     string `json:"analysis"`
	ReviewSource string `json:"review_source"`
}

const reviewDecisionSchema = `{
  "type": "object",
  "properties": {
    "analysis": {"type": "string", "description": "The analysis of the competitor based on the criteria."},
    "review_source": {"type": "string", "enum": ["trustpilot", "google reviews"], "description": "The source of the reviews."}
  },
  "required": ["analysis", "review_source"]
}`

const analysisSchema = `{
  "type": "object",
  "properties": {
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "opportunities": {"type": "array", "items": {"type": "string"}},
    "threats": {"type": "array", "items": {"type": "string"}},
    "report": {"type": "string", "description": "The SWOT analysis in markdown format."}
  },
  "required": ["strengths", "weaknesses", "opportunities", "threats", "report"]
}`

// Analyze decides where reviews of the subject live, searches them and
// writes the SWOT analysis.
func (a *Analyzer) Analyze(ctx context.Context, s Subject) (*Analysis, error) {
	logger := a.logger().With("competitor", s.Name)

	system, err := a.Prompts.Render(prompts.SWOTReviewSource, map[string]any{
		"Competitor": s.Name,
		"Report":     s.Report,
	})
	if err != nil {
		return nil, err
	}
	var decision reviewDecision
	err = a.LLM.Generate(ctx, llm.Request{
		Name:        "swot_review_source",
		System:      system,
		Instruction: "Analyze the report and decide if we should search trustpilot or google reviews.",
		Schema:      reviewDecisionSchema,
	}, &decision)
	if err != nil {
		return nil, fmt.Errorf("review source decision failed: %w", err)
	}

	query, maxResults := reviewQuery(decision.ReviewSource, s.Name)
	logger.Info("Searching reviews", "source", decision.ReviewSource, "query", query)

	batches, err := a.Search.Search(ctx, []string{query}, maxResults, search.Options{})
	if err != nil {
		return nil, fmt.Errorf("review search failed: %w", err)
	}
	set, err := sources.Deduplicate(batches, sources.Options{MaxTokensPerSource: a.TokensPerSource})
	if err != nil {
		return nil, err
	}

	system, err = a.Prompts.Render(prompts.SWOTAnalysis, map[string]any{
		"Competitor":   s.Name,
		"Report":       s.Report,
		"ReviewSource": decision.ReviewSource,
	})
	if err != nil {
		return nil, err
	}
	var analysis Analysis
	err = a.LLM.Generate(ctx, llm.Request{
		Name:        "swot_analysis",
		System:      system,
		Parts:       set.Parts(),
		Instruction: "Write the SWOT analysis of the competitor.",
		Schema:      analysisSchema,
	}, &analysis)
	if err != nil {
		return nil, fmt.Errorf("swot analysis failed: %w", err)
	}

	analysis.ReviewSource = decision.ReviewSource
	analysis.Sources = set.URLs()
	logger.Info("SWOT analysis complete", "sources", set.Len())
	return &analysis, nil
}

func reviewQuery(source, name string) (string, int) {
	if source == ReviewSourceTrustpilot {
		return "trustpilot " + name, 8
	}
	return "google reviews " + name, 10
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
