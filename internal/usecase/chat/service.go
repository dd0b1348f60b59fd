// Package chat runs chat completions over a persisted conversation history.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/logger"
)

// DefaultTemperature is used when a request leaves Temperature unset.
const DefaultTemperature float32 = 0.7

// Request is one user turn. An empty ConversationID starts a new conversation.
type Request struct {
	ConversationID string
	System         string
	Prompt         string
	Temperature    *float32
}

// Reply is the assistant answer and the conversation it belongs to.
type Reply struct {
	ConversationID   string
	ResponseID       string
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Service talks to the chat model and records every turn.
type Service struct {
	completer   domain.ChatCompleter
	log         Log
	temperature float32
	history     int
	logger      *zap.Logger
}

// Option configures the service.
type Option func(*Service)

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float32) Option {
	return func(s *Service) { s.temperature = t }
}

// WithHistoryLimit caps how many stored messages are sent back to the model.
// 0 sends the full history.
func WithHistoryLimit(n int) Option {
	return func(s *Service) { s.history = n }
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a chat service.
func New(completer domain.ChatCompleter, log Log, opts ...Option) *Service {
	s := &Service{
		completer:   completer,
		log:         log,
		temperature: DefaultTemperature,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewConversationID returns a dash-less random uuid.
func NewConversationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Complete sends the prompt with the prior history of the conversation and
// stores the prompt and the reply. The system prompt is sent but not stored.
func (s *Service) Complete(ctx context.Context, req Request) (Reply, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Reply{}, fmt.Errorf("prompt is required: %w", domain.ErrInvalidInput)
	}

	var history []domain.Message
	isNew := req.ConversationID == ""
	if !isNew {
		var err error
		history, err = s.log.Messages(ctx, req.ConversationID, s.history)
		if err != nil {
			return Reply{}, fmt.Errorf("load conversation: %w", err)
		}
	}

	msgs := make([]domain.Message, 0, len(history)+2)
	if req.System != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: req.System})
	}
	msgs = append(msgs, history...)
	user := domain.Message{Role: domain.RoleUser, Content: req.Prompt}
	msgs = append(msgs, user)

	temp := s.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	resp, err := s.completer.Complete(ctx, domain.ChatRequest{Messages: msgs, Temperature: temp})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}

	id := req.ConversationID
	if isNew {
		id = NewConversationID()
		if err := s.log.Create(ctx, id, resp.Created); err != nil {
			return Reply{}, fmt.Errorf("create conversation: %w", err)
		}
	}
	if err := s.log.Append(ctx, id, resp.ID, user, resp.Message); err != nil {
		return Reply{}, fmt.Errorf("store messages: %w", err)
	}

	logger.FromContext(ctx, s.logger).Debug("Chat turn completed",
		zap.String("conversation_id", id),
		zap.Bool("new", isNew),
		zap.Int("history", len(history)),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens),
	)

	return Reply{
		ConversationID:   id,
		ResponseID:       resp.ID,
		Content:          resp.Message.Content,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}, nil
}

// Messages returns the stored history of a conversation, oldest first.
func (s *Service) Messages(ctx context.Context, id string, limit int) ([]domain.Message, error) {
	msgs, err := s.log.Messages(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation messages: %w", err)
	}
	return msgs, nil
}
