// Package canvas fills in a business model canvas for a business idea.
package canvas

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/prompts"
)

var ErrEmptyBusinessIdea = errors.New("business idea is empty")

type GeneralInformation struct {
	Analysis          string   `json:"analysis"`
	BusinessModelType []string `json:"business_model_type"`
	Industry          string   `json:"industry"`
}

type Demographics struct {
	AgeRange    string  `json:"age_range"`
	IncomeLevel *string `json:"income_level,omitempty"`
	Lifestyle   *string `json:"lifestyle,omitempty"`
}

type TargetSegment struct {
	CustomerType           []string      `json:"customer_type"`
	Demographics           *Demographics `json:"demographics,omitempty"`
	PurchasingBehavior     *string       `json:"purchasing_behavior,omitempty"`
	GeographicSegmentation *string       `json:"geographic_segmentation,omitempty"`
}

type ValueProposition struct {
	USP             string   `json:"usp"`
	CustomerProblem string   `json:"customer_problem"`
	JobToBeDone     *string  `json:"job_to_be_done,omitempty"`
	CustomerPains   []string `json:"customer_pains"`
	CustomerGains   []string `json:"customer_gains"`
}

type OfferPortfolio struct {
	MainOffer        []string `json:"main_offer"`
	AdditionalOffers []string `json:"additional_offers,omitempty"`
}

type RevenueModel struct {
	RevenueModel    []string `json:"revenue_model"`
	PricingStrategy *string  `json:"pricing_strategy,omitempty"`
}

type Presence struct {
	PresenceForm string `json:"presence_form"`
	ServiceArea  string `json:"service_area"`
}

type Strategy struct {
	GrowthStrategy      string `json:"growth_strategy"`
	CompetitiveStrategy string `json:"competitive_strategy"`
}

type Marketing struct {
	Channels         []string `json:"channels"`
	BrandingStrategy *string  `json:"branding_strategy,omitempty"`
}

type Resources struct {
	KeyResources []string `json:"key_resources"`
	KeyPartners  []string `json:"key_partners,omitempty"`
}

type Processes struct {
	MainActivities      []string `json:"main_activities"`
	AutomationPotential *bool    `json:"automation_potential,omitempty"`
}

// Canvas is a business model canvas. Enumerated fields only hold the
// values listed in schema.go.
type Canvas struct {
	GeneralInformation GeneralInformation `json:"general_information"`
	TargetSegments     []TargetSegment    `json:"target_segments"`
	ValueProposition   []ValueProposition `json:"value_proposition"`
	OfferPortfolio     OfferPortfolio     `json:"offer_portfolio"`
	RevenueModel       RevenueModel       `json:"revenue_model"`
	Presence           Presence           `json:"presence"`
	Strategy           Strategy           `json:"strategy"`
	Marketing          Marketing          `json:"marketing"`
	Resources          Resources          `json:"resources"`
	Processes          Processes          `json:"processes"`
}

type Generator struct {
	LLM     *llm.Client
	Prompts *prompts.Set
	Logger  *slog.Logger
}

func NewGenerator(client *llm.Client, set *prompts.Set) *Generator {
	return &Generator{LLM: client, Prompts: set, Logger: slog.Default()}
}

// Generate fills in the canvas with a single structured call.
func (g *Generator) Generate(ctx context.Context, businessIdea string) (*Canvas, error) {
	if strings.TrimSpace(businessIdea) == "" {
		return nil, ErrEmptyBusinessIdea
	}

	system, err := g.Prompts.Render(prompts.Canvas, map[string]any{"BusinessIdea": businessIdea})
	if err != nil {
		return nil, err
	}

	var c Canvas
	err = g.LLM.Generate(ctx, llm.Request{
		Name:        "business_model_canvas",
		System:      system,
		Instruction: "Generate the business model canvas for the following business idea: " + businessIdea,
		Schema:      Schema,
	}, &c)
	if err != nil {
		return nil, err
	}

	g.logger().Info("Generated business model canvas", "industry", c.GeneralInformation.Industry, "segments", len(c.TargetSegments))
	return &c, nil
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
