package landscape

import "fmt"

// Topic is one of the topical reports of a landscape run.
type Topic struct {
	Field     string
	Title     string
	topic     string
	structure string
}

// Topic returns the research topic for the business idea.
func (t Topic) Topic(businessIdea string) string {
	return fmt.Sprintf(t.topic, businessIdea)
}

// Structure returns the report organization for the topic.
func (t Topic) Structure() string {
	return t.structure
}

var Topics = []Topic{
	{
		Field: "market_analysis_report",
		Title: "Market Analysis",
		topic: "Create a comprehensive market analysis for the product or service: %s. The goal is to identify market volume, growth rates, target segments and current market trends relevant for a potential market entry. The analysis should consider relevant geographic markets, existing market leaders and possible market entry barriers.",
		structure: `# Market Analysis Report Structure

## Market volume & growth rates
- Global and regional market size (absolute in revenue and units).
- Historical and forecast growth rates (3-5 years).
- **KPIs:**
  - Market size (in $ or units).
  - Growth rate (yearly, %).

## Target segments
- Identification of target segments based on geographic, demographic or industry criteria.
- **KPIs:**
  - Number of identified segments.
  - Revenue potential per segment.

## Market entry barriers
- Regulatory, economic or technological obstacles.
- **KPIs:**
  - Number of obstacles.
  - Qualitative rating of the entry barriers.

## Executive Summary
- Short summary of the key findings (market size, trends, barriers).
`,
	},
	{
		Field: "competitor_analysis_report",
		Title: "Competitor Analysis",
		topic: "Analyze the main competitors for the planned business idea: %s. The goal is to understand their market shares, business models, strengths, weaknesses and differentiation strategies in order to identify competitive advantages.",
		structure: `# Competitor Analysis Report Structure

## Market leader identification
- List of the top 5-10 competitors with market share information.
- **KPIs:**
  - Market share (%) per competitor.
  - Geographic presence.

## Product comparison
- Overview of the most important products and services of the competitors.
- **KPIs:**
  - Number of products or services.
  - Price levels.
  - Unique selling points (USPs).

## SWOT analysis of the competitors
- Identification of strengths, weaknesses, opportunities and threats.
- **KPIs:**
  - Differentiation strategies.
  - Customer retention measures.

## Executive Summary
- Short overview of the main competitors and their market positions.
`,
	},
	{
		Field: "customer_analysis_report",
		Title: "Customer Opinion Analysis",
		topic: "Analyze customer opinions and reviews of existing products or services related to %s. The goal is to identify common customer needs, points of criticism and potential areas for improvement.",
		structure: `# Customer Opinion Analysis Report Structure

## Review analysis
- Collection and evaluation of customer reviews (e.g. forums, blogs, social media, review platforms).
- **KPIs:**
  - Number of analyzed reviews.
  - Share of positive and negative reviews.

## Key needs & points of criticism
- Identification of recurring themes (e.g. price, quality, features).
- **KPIs:**
  - Frequently mentioned needs and criticism.
  - Sentiment analysis scores.

## Recommendations
- Recommendations for product development based on the analysis.

## Executive Summary
- Short summary of customer preferences and the most frequent criticism.
`,
	},
	{
		Field: "technology_analysis_report",
		Title: "State of Technology",
		topic: "Research the current state of the technology required to implement %s. The goal is to determine available technical solutions, their maturity and typical weaknesses.",
		structure: `# State of Technology Report Structure

## Available technologies
- List of relevant technologies with a short description and application.
- **KPIs:**
  - Number of available technologies.
  - Market share of leading technologies.

## Maturity
- Rating of the development stage (e.g. proof of concept, market ready).
- **KPIs:**
  - Number of market ready solutions.
  - Technological barriers.

## Practical examples
- Case studies or reports about similar implementations.

## Executive Summary
- Overview of the technological basis and current implementations.
`,
	},
	{
		Field: "technology_trends_report",
		Title: "Technology Trends",
		topic: "Research the current technology trends relevant for implementing %s. The goal is to identify the most important technological developments for the business idea.",
		structure: `# Technology Trends Report Structure

## Trend identification
- List of relevant trends and their possible impact.
- **KPIs:**
  - Number of relevant trends.
  - Innovation lead (qualitative rating).

## Technology investments
- Analysis of investment flows into specific technologies.
- **KPIs:**
  - Amount of investments.
  - Geographic distribution of investments.

## Forecasts
- Expert opinions or studies on future developments.

## Executive Summary
- Overview of the most important technology trends.
`,
	},
	{
		Field: "legal_compliance_report",
		Title: "Legal Compliance",
		topic: "Research the regulatory and legal requirements relevant for implementing %s. The goal is to identify potential hurdles and required permits to ensure legal compliance.",
		structure: `# Legal Compliance Report Structure

## Legal regulations
- Overview of relevant laws and regulations (e.g. data protection, product liability).
- **KPIs:**
  - Number of identified regulations.
  - Severity of possible non-compliance.

## Industry standards
- Overview of certifications or standards (e.g. ISO, CE).
- **KPIs:**
  - Number of recommended certificates.
  - Estimated certification costs.

## Requirements by region
- Analysis of country specific rules and differences.
- **KPIs:**
  - Number of critical differences between regions.

## Executive Summary
- Summary of the most important regulatory requirements.
`,
	},
}
