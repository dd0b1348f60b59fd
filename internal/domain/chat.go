package domain

import (
	"context"
	"time"
)

// Role is the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is a completion request: the full message history plus sampling temperature.
type ChatRequest struct {
	Messages    []Message
	Temperature float32
}

// ChatResponse is the model's reply and its usage.
type ChatResponse struct {
	ID               string
	Message          Message
	Created          time.Time
	PromptTokens     int
	CompletionTokens int
}

// ChatCompleter generates a chat completion.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
