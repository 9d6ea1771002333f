// Package llmtest provides a scripted llms.Model for pipeline tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call records one request seen by the model.
type Call struct {
	System string
	Human  string
	Images int
}

// Prompt is the concatenation of the system and human text.
func (c Call) Prompt() string {
	return c.System + "\n" + c.Human
}

// Route answers every call whose prompt contains Match.
type Route struct {
	Match   string
	Respond func(call Call) (string, error)
}

// Model is a concurrency-safe fake that answers from the first matching
// route, in registration order.
type Model struct {
	mu     sync.Mutex
	routes []Route
	calls  []Call
}

func New() *Model {
	return &Model{}
}

// On registers a handler for prompts containing match.
func (m *Model) On(match string, respond func(call Call) (string, error)) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, Route{Match: match, Respond: respond})
	return m
}

// Reply registers a fixed reply for prompts containing match.
func (m *Model) Reply(match, reply string) *Model {
	return m.On(match, func(Call) (string, error) { return reply, nil })
}

// Fail registers a failing route for prompts containing match.
func (m *Model) Fail(match string, err error) *Model {
	return m.On(match, func(Call) (string, error) { return "", err })
}

func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsMatching counts recorded calls whose prompt contains match.
func (m *Model) CallsMatching(match string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.Contains(c.Prompt(), match) {
			n++
		}
	}
	return n
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var call Call
	for _, msg := range messages {
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				if msg.Role == llms.ChatMessageTypeSystem {
					call.System += p.Text
				} else {
					call.Human += p.Text
				}
			case llms.ImageURLContent:
				call.Images++
			}
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	routes := append([]Route(nil), m.routes...)
	m.mu.Unlock()

	for _, r := range routes {
		if strings.Contains(call.Prompt(), r.Match) {
			content, err := r.Respond(call)
			if err != nil {
				return nil, err
			}
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
		}
	}

	return nil, fmt.Errorf("llmtest: no route for prompt %q", truncate(call.System, 120))
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
