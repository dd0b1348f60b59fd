package chat

import (
	"context"
	"time"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// Log persists conversations.
type Log interface {
	Create(ctx context.Context, id string, createdAt time.Time) error
	Exists(ctx context.Context, id string) (bool, error)
	Append(ctx context.Context, id, responseID string, msgs ...domain.Message) error
	Messages(ctx context.Context, id string, limit int) ([]domain.Message, error)
}
