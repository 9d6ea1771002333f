package competitors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/swot"
	"github.com/mikeboe/market-research/pkg/workflow"
)

var ErrEmptyBusinessIdea = errors.New("business idea is empty")

// Input configures one competitor research run.
type Input struct {
	BusinessIdea string           `json:"business_idea"`
	Limits       config.RunLimits `json:"limits"`
	// MaxCompetitors caps the number of researched competitors. Zero
	// researches every discovered competitor.
	MaxCompetitors int `json:"max_competitors,omitempty"`
	// Concurrency caps the number of competitors researched at once.
	// Zero runs them all at once.
	Concurrency int `json:"concurrency,omitempty"`
	// Screenshots renders result pages in the browser and sends screenshot
	// segments to the model during competitor research.
	Screenshots bool `json:"screenshots,omitempty"`
	// SWOT runs a SWOT analysis for every researched competitor.
	SWOT bool `json:"swot,omitempty"`
}

// DefaultLimits are the limits used when none are configured.
var DefaultLimits = config.RunLimits{
	Competition: config.Limits{Queries: 3, Results: 10, TokensPerSource: 1000},
	Stats:       config.Limits{Queries: 2, Results: 3, TokensPerSource: 1000},
	Products:    config.Limits{Queries: 2, Results: 2, TokensPerSource: 1000},
}

func DefaultInput(businessIdea string) Input {
	return Input{BusinessIdea: businessIdea, Limits: DefaultLimits}
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.BusinessIdea) == "" {
		return ErrEmptyBusinessIdea
	}
	if err := in.Limits.Validate(); err != nil {
		return err
	}
	if in.MaxCompetitors < 0 || in.Concurrency < 0 {
		return fmt.Errorf("%w: max competitors and concurrency must not be negative", config.ErrInvalidLimit)
	}
	return nil
}

type Product struct {
	Name              *string  `json:"name"`
	Price             *float64 `json:"price"`
	BillingModel      *string  `json:"billing_model"`
	BillingPeriod     *string  `json:"billing_period"`
	Features          []string `json:"features"`
	ValuePropositions []string `json:"value_propositions"`
	SourceURL         string   `json:"source_url"`
}

// Stats are the key figures extracted for a competitor.
type Stats struct {
	Summary                       string   `json:"summary"`
	Employees                     *int     `json:"employees"`
	OfficialWebsiteDomain         *string  `json:"official_website_domain"`
	RevenueCurrentYearInMillions  *float64 `json:"revenue_current_year_in_millions"`
	RevenuePreviousYearInMillions *float64 `json:"revenue_previous_year_in_millions"`
}

// Scores rate from 1 to 10 how close a competitor is to the business idea.
type Scores struct {
	ValuePropositions int `json:"value_propositions_similarity_score"`
	Features          int `json:"features_similarity_score"`
	Goal              int `json:"goal_similarity_score"`
}

type Competitor struct {
	Name            string         `json:"name"`
	Stats           Stats          `json:"stats"`
	Products        []Product      `json:"products"`
	ProductAnalysis string         `json:"product_analysis"`
	Report          string         `json:"report"`
	Scores          Scores         `json:"scores"`
	StatSources     []string       `json:"stat_sources"`
	ProductSources  []string       `json:"product_sources"`
	SWOT            *swot.Analysis `json:"swot,omitempty"`
}

// Result is the output of a run. Competitors that failed are listed in
// Failed and left out of Competitors.
type Result struct {
	BusinessIdea     string                 `json:"business_idea"`
	ExecutiveSummary string                 `json:"executive_summary"`
	Competitors      []Competitor           `json:"competitors"`
	Failed           []workflow.UnitFailure `json:"failed,omitempty"`
}
