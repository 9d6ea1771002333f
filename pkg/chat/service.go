package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/database"
)

const (
	appName   = "market-research"
	agentName = "market_analyst"
	userID    = "user"
)

var ErrConversationNotFound = errors.New("conversation not found")

const instruction = `You are a market research analyst answering questions about the sources collected during a research job.
ALWAYS use the search_sources tool first and use find_sources_by_url to read a source in full.
Answer only from the retrieved content and group the answer by source: # Source: <url>, followed by an unordered list of the supporting passages.`

type Service struct {
	DB        *database.PostgresDB
	Client    *genai.Client
	Model     model.LLM
	Retriever *archive.Retriever
	// TitleModel names the model used for conversation titles.
	TitleModel string
}

type Conversation struct {
	ID        uuid.UUID  `json:"id"`
	JobID     *uuid.UUID `json:"job_id,omitempty"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// StreamEvent is one event of a streamed reply. Type is one of content,
// tool_call, tool_result, error or done.
type StreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func NewService(ctx context.Context, db *database.PostgresDB, cfg *config.Config, retriever *archive.Retriever) (*Service, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GoogleApiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	llm, err := gemini.NewModel(ctx, cfg.ReasoningModel, &genai.ClientConfig{APIKey: cfg.GoogleApiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	return &Service{
		DB:         db,
		Client:     client,
		Model:      llm,
		Retriever:  retriever,
		TitleModel: cfg.FastModel,
	}, nil
}

// newAgent builds an agent whose tools only see the sources of jobID.
func (s *Service) newAgent(jobID *uuid.UUID) (agent.Agent, error) {
	scope := ""
	if jobID != nil {
		scope = jobID.String()
	}
	return llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       s.Model,
		Description: "A market research analyst with access to the collected web sources.",
		Instruction: instruction,
		Toolsets:    []tool.Toolset{NewSourceToolset(s.Retriever, scope)},
	})
}

func (s *Service) CreateConversation(ctx context.Context, jobID *uuid.UUID) (*Conversation, error) {
	query := `INSERT INTO conversations (id, job_id) VALUES ($1, $2) RETURNING id, job_id, title, created_at, updated_at`

	conv := &Conversation{}
	err := s.DB.Pool.QueryRow(ctx, query, uuid.New(), jobID).Scan(&conv.ID, &conv.JobID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv := &Conversation{}
	err := s.DB.Pool.QueryRow(ctx,
		`SELECT id, job_id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.JobID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the conversations of jobID, or all of them
// when jobID is nil.
func (s *Service) ListConversations(ctx context.Context, jobID *uuid.UUID) ([]Conversation, error) {
	query := `SELECT id, job_id, title, created_at, updated_at FROM conversations
		WHERE $1::uuid IS NULL OR job_id = $1
		ORDER BY updated_at DESC`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.JobID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *Service) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	rows, err := s.DB.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SendMessage stores the user message and streams the agent's reply. The
// reply is stored once the stream completes.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (iter.Seq2[StreamEvent, error], error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsgID := uuid.New()
	_, err = s.DB.Pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'user', $3)`,
		userMsgID, conversationID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	sessionSvc := session.InMemoryService()
	sessionID := conversationID.String()
	created, err := sessionSvc.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	history, err := s.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	for _, msg := range history {
		if msg.ID == userMsgID {
			continue
		}
		role, author := "user", userID
		if msg.Role == "model" {
			role, author = "model", agentName
		}
		evt := session.NewEvent(uuid.NewString())
		evt.Author = author
		evt.LLMResponse = model.LLMResponse{
			Content: &genai.Content{Role: role, Parts: []*genai.Part{{Text: msg.Content}}},
		}
		sessionSvc.AppendEvent(ctx, created.Session, evt)
	}

	analyst, err := s.newAgent(conv.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          analyst,
		SessionService: sessionSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	userContent := &genai.Content{Role: "user", Parts: []*genai.Part{{Text: content}}}

	return func(yield func(StreamEvent, error) bool) {
		slog.Info("Starting agent run", "conversation_id", conversationID, "job_id", conv.JobID)

		var reply strings.Builder
		for event, err := range r.Run(ctx, userID, sessionID, userContent, agent.RunConfig{StreamingMode: agent.StreamingModeSSE}) {
			if err != nil {
				slog.Error("Agent runner error", "error", err)
				yield(StreamEvent{Type: "error", Payload: err.Error()}, err)
				return
			}
			if event.LLMResponse.Content == nil {
				continue
			}
			for _, part := range event.LLMResponse.Content.Parts {
				var ev StreamEvent
				switch {
				case part.Text != "":
					reply.WriteString(part.Text)
					ev = StreamEvent{Type: "content", Payload: part.Text}
				case part.FunctionCall != nil:
					slog.Info("Agent tool call", "tool", part.FunctionCall.Name)
					ev = StreamEvent{Type: "tool_call", Payload: part.FunctionCall}
				case part.FunctionResponse != nil:
					ev = StreamEvent{Type: "tool_result", Payload: part.FunctionResponse}
				default:
					continue
				}
				if !yield(ev, nil) {
					return
				}
			}
		}

		_, err := s.DB.Pool.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'model', $3)`,
			uuid.New(), conversationID, reply.String())
		if err != nil {
			slog.Error("Failed to save model message", "error", err)
		} else {
			_, _ = s.DB.Pool.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
		}

		yield(StreamEvent{Type: "done", Payload: "done"}, nil)

		if len(history) <= 2 {
			go s.generateTitle(conversationID, content, reply.String())
		}
	}, nil
}

func (s *Service) generateTitle(convID uuid.UUID, userMsg, modelMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prompt := fmt.Sprintf("Generate a short, concise title (max 5 words) for this chat conversation about market research sources:\nUser: %s\nModel: %s", userMsg, modelMsg)
	resp, err := s.Client.Models.GenerateContent(ctx, s.TitleModel, []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}},
	}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{"title": {Type: genai.TypeString}},
			Required:   []string{"title"},
		},
	})
	if err != nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		slog.Warn("Title generation failed", "conversation_id", convID, "error", err)
		return
	}

	var raw strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		raw.WriteString(p.Text)
	}
	var out struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw.String()), &out); err != nil {
		slog.Error("Failed to unmarshal title generation response", "error", err, "raw_json", raw.String())
		return
	}
	if out.Title == "" {
		return
	}
	if _, err := s.DB.Pool.Exec(ctx, `UPDATE conversations SET title = $2 WHERE id = $1`, convID, out.Title); err != nil {
		slog.Error("Failed to update conversation title", "error", err)
	}
}
