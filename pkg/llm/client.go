package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mikeboe/market-research/pkg/metrics"
)

var (
	ErrNoChoices       = errors.New("llm returned no choices")
	ErrMalformedOutput = errors.New("llm output does not match schema")
)

// Client wraps a langchaingo model with schema-validated structured output.
type Client struct {
	Model    llms.Model
	Attempts int
	Logger   *slog.Logger
	Options  []llms.CallOption
}

func NewClient(model llms.Model, attempts int) *Client {
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		Model:    model,
		Attempts: attempts,
		Logger:   slog.Default(),
	}
}

// Request is a single prompt. Parts are sent as the human message, followed
// by Instruction when set.
type Request struct {
	Name        string
	System      string
	Parts       []llms.ContentPart
	Instruction string
	Schema      string
}

func (r Request) messages(withSchema bool) []llms.MessageContent {
	system := r.System
	if withSchema && r.Schema != "" {
		system += "\n\n# Response Format: \n\n" + schemaInstructions + r.Schema
	}

	human := append([]llms.ContentPart(nil), r.Parts...)
	if r.Instruction != "" {
		human = append(human, llms.TextPart(r.Instruction))
	}
	if len(human) == 0 {
		human = append(human, llms.TextPart("Proceed."))
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		{Role: llms.ChatMessageTypeHuman, Parts: human},
	}
}

const schemaInstructions = `Return the JSON object directly without any formatting or additional text. The JSON object should have the following structure as defined in the schema. Make sure to answer in valid json and include all necessary properties:`

// Generate sends req in JSON mode, validates the reply against req.Schema
// and decodes it into out.
func (c *Client) Generate(ctx context.Context, req Request, out any) error {
	var schema *gojsonschema.Schema
	if req.Schema != "" {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(req.Schema))
		if err != nil {
			return fmt.Errorf("invalid schema for %s: %w", req.Name, err)
		}
		schema = s
	}

	content, err := c.generateWithRetry(ctx, req, req.messages(true), func(content string) error {
		return decode(schema, content, out)
	}, llms.WithJSONMode())
	if err != nil {
		return err
	}

	c.logger().Debug("Structured output received", "stage", req.Name, "length", len(content))
	return nil
}

// Text sends req and returns the plain reply.
func (c *Client) Text(ctx context.Context, req Request) (string, error) {
	content, err := c.generateWithRetry(ctx, req, req.messages(false), func(content string) error {
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("%w: empty reply", ErrMalformedOutput)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) generateWithRetry(ctx context.Context, req Request, prompts []llms.MessageContent, validator func(string) error, opts ...llms.CallOption) (string, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	opts = append(append([]llms.CallOption(nil), c.Options...), opts...)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			c.logger().Warn("Retrying LLM generation", "stage", req.Name, "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(i)):
			}
		}

		resp, err := c.Model.GenerateContent(ctx, prompts, opts...)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			metrics.LLMCallsTotal.WithLabelValues(req.Name, metrics.OutcomeFailure).Inc()
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = ErrNoChoices
			metrics.LLMCallsTotal.WithLabelValues(req.Name, metrics.OutcomeFailure).Inc()
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = err
			metrics.LLMCallsTotal.WithLabelValues(req.Name, metrics.OutcomeFailure).Inc()
			continue
		}

		metrics.LLMCallsTotal.WithLabelValues(req.Name, metrics.OutcomeSuccess).Inc()
		return content, nil
	}

	if attempts == 1 {
		return "", fmt.Errorf("%s: %w", req.Name, lastErr)
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", req.Name, attempts, lastErr)
}

func decode(schema *gojsonschema.Schema, content string, out any) error {
	content = stripCodeFence(content)

	if schema != nil {
		result, err := schema.Validate(gojsonschema.NewStringLoader(content))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		if !result.Valid() {
			errs := make([]string, len(result.Errors()))
			for i, desc := range result.Errors() {
				errs[i] = desc.String()
			}
			return fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(errs, "; "))
		}
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
