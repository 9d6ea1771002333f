package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// QueryPlan is the structured reply of every query generation prompt.
type QueryPlan struct {
	Reasoning string   `json:"reasoning"`
	Queries   []string `json:"queries"`
}

const QueryPlanSchema = `{
  "type": "object",
  "properties": {
    "reasoning": {
      "type": "string",
      "description": "The reasoning behind the queries."
    },
    "queries": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "minItems": 1,
      "description": "The list of search queries."
    }
  },
  "required": ["reasoning", "queries"]
}`

// GenerateQueries asks the model for search queries and returns at most
// limit non-empty, distinct queries.
func (c *Client) GenerateQueries(ctx context.Context, name, system, instruction string, limit int) ([]string, error) {
	var plan QueryPlan
	err := c.Generate(ctx, Request{
		Name:        name,
		System:      system,
		Parts:       []llms.ContentPart{},
		Instruction: instruction,
		Schema:      QueryPlanSchema,
	}, &plan)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(plan.Queries))
	queries := make([]string, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
		if limit > 0 && len(queries) == limit {
			break
		}
	}

	c.logger().Info("Generated queries", "stage", name, "queries", queries)
	return queries, nil
}
