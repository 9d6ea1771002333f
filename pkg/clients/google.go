package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-3-flash-preview"
	ProModel     = "gemini-3-pro-preview"
)

var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY is not set")

// GoogleAi returns a Gemini chat model. See
// https://ai.google.dev/gemini-api/docs/models/gemini for possible models.
func GoogleAi(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}

	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", model, err)
	}
	return llm, nil
}
