package walk

import (
	"context"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// Provider is a similarity search backend. Text queries are embedded by the
// provider with its pinned model; vector queries are searched as-is.
// Implementations must be safe for concurrent reads.
type Provider interface {
	Search(ctx context.Context, corpus string, q domain.Query, topK int) (domain.SearchResponse, error)
}

// Completer generates chat completions for walk summaries.
type Completer interface {
	Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
}
