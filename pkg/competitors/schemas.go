package competitors

type nameList struct {
	Competitors []string `json:"competitors"`
}

const nameListSchema = `{
  "type": "object",
  "properties": {
    "competitors": {
      "type": "array",
      "items": {"type": "string"},
      "description": "The list of competitor names."
    }
  },
  "required": ["competitors"]
}`

const statsSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string", "description": "A summary of the sources about the competitor in markdown format."},
    "employees": {"type": ["integer", "null"], "description": "The number of employees of the competitor."},
    "official_website_domain": {"type": ["string", "null"], "description": "The domain of the official website of the competitor."},
    "revenue_current_year_in_millions": {"type": ["number", "null"], "description": "The revenue of the competitor in the current year in millions."},
    "revenue_previous_year_in_millions": {"type": ["number", "null"], "description": "The revenue of the competitor in the previous year in millions."}
  },
  "required": ["summary", "employees", "official_website_domain", "revenue_current_year_in_millions", "revenue_previous_year_in_millions"]
}`

type productList struct {
	Analysis string    `json:"analysis"`
	Products []Product `json:"products"`
}

const productListSchema = `{
  "type": "object",
  "properties": {
    "analysis": {"type": "string", "description": "A critical analysis of the search results to ensure that the actual products with the correct values are extracted."},
    "products": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": ["string", "null"]},
          "price": {"type": ["number", "null"]},
          "billing_model": {"type": ["string", "null"]},
          "billing_period": {"type": ["string", "null"]},
          "features": {"type": "array", "items": {"type": "string"}},
          "value_propositions": {"type": "array", "items": {"type": "string"}},
          "source_url": {"type": "string"}
        },
        "required": ["name", "price", "billing_model", "billing_period", "features", "value_propositions", "source_url"]
      }
    }
  },
  "required": ["analysis", "products"]
}`

type competitorReport struct {
	Report string `json:"report"`
	Scores
}

const competitorReportSchema = `{
  "type": "object",
  "properties": {
    "report": {"type": "string", "description": "The report about the competitor in markdown format."},
    "value_propositions_similarity_score": {"type": "integer", "minimum": 1, "maximum": 10},
    "features_similarity_score": {"type": "integer", "minimum": 1, "maximum": 10},
    "goal_similarity_score": {"type": "integer", "minimum": 1, "maximum": 10}
  },
  "required": ["report", "value_propositions_similarity_score", "features_similarity_score", "goal_similarity_score"]
}`
