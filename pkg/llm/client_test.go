package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/llm/llmtest"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
		want    []string
	}{
		{
			name:  "Valid output",
			reply: `{"reasoning": "r", "queries": ["a", "b"]}`,
			want:  []string{"a", "b"},
		},
		{
			name:  "Fenced output",
			reply: "```json\n{\"reasoning\": \"r\", \"queries\": [\"a\"]}\n```",
			want:  []string{"a"},
		},
		{
			name:    "Missing required field",
			reply:   `{"queries": ["a"]}`,
			wantErr: ErrMalformedOutput,
		},
		{
			name:    "Not JSON",
			reply:   `I could not find anything`,
			wantErr: ErrMalformedOutput,
		},
		{
			name:    "Empty queries",
			reply:   `{"reasoning": "r", "queries": []}`,
			wantErr: ErrMalformedOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.New().Reply("plan", tt.reply)
			client := NewClient(model, 1)

			var plan QueryPlan
			err := client.Generate(context.Background(), Request{Name: "test", System: "plan", Schema: QueryPlanSchema}, &plan)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Queries)
		})
	}
}

func TestGenerateSendsSchema(t *testing.T) {
	model := llmtest.New().Reply("plan", `{"reasoning": "r", "queries": ["a"]}`)
	client := NewClient(model, 1)

	var plan QueryPlan
	require.NoError(t, client.Generate(context.Background(), Request{Name: "test", System: "plan", Instruction: "go", Schema: QueryPlanSchema}, &plan))

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "# Response Format")
	assert.Contains(t, calls[0].System, `"queries"`)
	assert.Equal(t, "go", calls[0].Human)
}

func TestGenerateRetries(t *testing.T) {
	attempts := 0
	model := llmtest.New().On("plan", func(llmtest.Call) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("provider unavailable")
		}
		return `{"reasoning": "r", "queries": ["a"]}`, nil
	})

	client := NewClient(model, 2)
	var plan QueryPlan
	require.NoError(t, client.Generate(context.Background(), Request{Name: "test", System: "plan", Schema: QueryPlanSchema}, &plan))
	assert.Equal(t, 2, attempts)
}

func TestGenerateSingleAttemptPropagatesProviderError(t *testing.T) {
	providerErr := errors.New("quota exceeded")
	model := llmtest.New().Fail("plan", providerErr)

	client := NewClient(model, 1)
	var plan QueryPlan
	err := client.Generate(context.Background(), Request{Name: "test", System: "plan", Schema: QueryPlanSchema}, &plan)
	assert.ErrorIs(t, err, providerErr)
	assert.Len(t, model.Calls(), 1)
}

func TestGenerateQueriesCapsAndDedups(t *testing.T) {
	model := llmtest.New().Reply("plan", `{"reasoning": "r", "queries": ["a", " a ", "", "b", "c"]}`)
	client := NewClient(model, 1)

	queries, err := client.GenerateQueries(context.Background(), "test", "plan", "go", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, queries)
}

func TestText(t *testing.T) {
	model := llmtest.New().Reply("write", "  # Report\n").Reply("empty", "   ")
	client := NewClient(model, 1)

	got, err := client.Text(context.Background(), Request{Name: "test", System: "write"})
	require.NoError(t, err)
	assert.Equal(t, "# Report", got)

	_, err = client.Text(context.Background(), Request{Name: "test", System: "empty"})
	assert.ErrorIs(t, err, ErrMalformedOutput)
}
