package canvas

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/llm"
	"github.com/mikeboe/market-research/pkg/llm/llmtest"
	"github.com/mikeboe/market-research/pkg/prompts"
)

const canvasReply = `{
  "general_information": {"analysis": "Subscription software for trades.", "business_model_type": ["B2B"], "industry": "SaaS"},
  "target_segments": [
    {"customer_type": ["B2B"], "demographics": null, "purchasing_behavior": "Planned", "geographic_segmentation": "National"}
  ],
  "value_proposition": [
    {"usp": "Scheduling built for plumbers", "customer_problem": "Lost jobs", "job_to_be_done": null, "customer_pains": ["paperwork"], "customer_gains": ["more jobs"]}
  ],
  "offer_portfolio": {"main_offer": ["Scheduling app"], "additional_offers": null},
  "revenue_model": {"revenue_model": ["Subscription Model"], "pricing_strategy": "Value-Based Pricing"},
  "presence": {"presence_form": "Digital", "service_area": "National"},
  "strategy": {"growth_strategy": "Market Penetration", "competitive_strategy": "Focus"},
  "marketing": {"channels": ["SEO", "SEA"], "branding_strategy": null},
  "resources": {"key_resources": ["Technology"], "key_partners": ["Wholesalers"]},
  "processes": {"main_activities": ["Development", "Customer Support"], "automation_potential": true}
}`

func TestGenerate(t *testing.T) {
	model := llmtest.New().Reply("filling in a business model canvas", canvasReply)
	g := NewGenerator(llm.NewClient(model, 1), prompts.Default())

	c, err := g.Generate(context.Background(), "Scheduling for plumbers")
	require.NoError(t, err)

	assert.Equal(t, "SaaS", c.GeneralInformation.Industry)
	assert.Equal(t, []string{"B2B"}, c.GeneralInformation.BusinessModelType)
	require.Len(t, c.TargetSegments, 1)
	assert.Nil(t, c.TargetSegments[0].Demographics)
	require.NotNil(t, c.TargetSegments[0].PurchasingBehavior)
	assert.Equal(t, "Planned", *c.TargetSegments[0].PurchasingBehavior)
	assert.Nil(t, c.Marketing.BrandingStrategy)
	require.NotNil(t, c.Processes.AutomationPotential)
	assert.True(t, *c.Processes.AutomationPotential)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Human, "Scheduling for plumbers")
	assert.Contains(t, calls[0].System, "Subscription Model")
}

func TestGenerateRejectsInvalidCanvas(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"unknown enum value", strings.Replace(canvasReply, `"Digital"`, `"Metaverse"`, 1)},
		{"missing section", strings.Replace(canvasReply, `"presence"`, `"presenze"`, 1)},
		{"not json", "the canvas is great"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.New().Reply("filling in a business model canvas", tt.reply)
			g := NewGenerator(llm.NewClient(model, 1), prompts.Default())

			_, err := g.Generate(context.Background(), "Scheduling for plumbers")
			assert.ErrorIs(t, err, llm.ErrMalformedOutput)
		})
	}
}

func TestGenerateRejectsEmptyIdea(t *testing.T) {
	g := NewGenerator(llm.NewClient(llmtest.New(), 1), prompts.Default())
	_, err := g.Generate(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyBusinessIdea)
}
