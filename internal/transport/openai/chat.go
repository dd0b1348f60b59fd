package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/metrics"
)

// Completer is a chat completion provider using the OpenAI-compatible API.
type Completer struct {
	client *openai.Client
	model  string
	user   string
	logger *zap.Logger
}

// NewCompleter creates a chat completion provider. Dimensions is ignored.
func NewCompleter(cfg *Config) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client: newClient(cfg),
		model:  cfg.Model,
		user:   cfg.User,
		logger: logger,
	}
}

// Complete implements domain.ChatCompleter.
func (c *Completer) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: req.Temperature,
		User:        c.user,
	})
	if err != nil {
		metrics.ChatCompletionsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Debug("Chat completion failed", zap.Int("messages", len(msgs)), zap.Error(err))
		return domain.ChatResponse{}, parseAPIError("chat", err, domain.NewChatProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.ChatCompletionsTotal.WithLabelValues(c.model, "error").Inc()
		return domain.ChatResponse{}, domain.NewChatProviderError(fmt.Errorf("empty completion response"))
	}

	metrics.ChatCompletionsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.ChatTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ChatTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	msg := resp.Choices[0].Message
	created := time.Now().UTC()
	if resp.Created > 0 {
		created = time.Unix(resp.Created, 0).UTC()
	}
	return domain.ChatResponse{
		ID:               resp.ID,
		Message:          domain.Message{Role: domain.Role(msg.Role), Content: msg.Content},
		Created:          created,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
