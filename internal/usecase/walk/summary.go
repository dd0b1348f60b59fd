package walk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/semwalk/internal/domain"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
)

// SummaryPrompt is the system prompt used to summarize a walk's documents.
const SummaryPrompt = `As a Large Language Model, you are equipped to process and summarize vast
amounts of information. When the user provides a content, your task is to
provide an accurate summary, introducing the core ideas, the essence of the
content, and the main events and keywords included within the content.

Please, respond always after following the below procedure:
1. Recognize the format or structure of the user's content.
2. Identify main topics, events, and key phrases in content.
3. Focus only on the provided content; do not introduce external information.

Use such topics, events, and phrases to summarize the content. The length in
terms of paragraphs is at your discretion, but ensure the content is
comprehensive and inclusive of relevant events. Be sure to include such events.
Always respond in the language in which the user made the request.`

// ErrSummaryUnavailable is returned by Summarize when no chat model is configured.
var ErrSummaryUnavailable = errors.New("walk summary: no chat model configured")

// Summarize asks the chat model to summarize the trace's documents in walk
// order. instruction, when set, is prepended to the user message.
func (s *Service) Summarize(ctx context.Context, res domwalk.Result, instruction string) (string, error) {
	if s.completer == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNotImplemented, ErrSummaryUnavailable)
	}
	if len(res.Trace) == 0 {
		return "", nil
	}

	var b strings.Builder
	if instruction != "" {
		b.WriteString(instruction)
		b.WriteString("\n\n")
	}
	b.WriteString("```")
	for i, text := range res.Texts() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	b.WriteString("```")

	resp, err := s.completer.Complete(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: SummaryPrompt},
			{Role: domain.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize walk: %w", err)
	}
	return resp.Message.Content, nil
}
