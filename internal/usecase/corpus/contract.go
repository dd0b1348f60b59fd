package corpus

import (
	"context"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// Manager is the storage contract for corpus management.
type Manager interface {
	Create(ctx context.Context, name string, dim int) error
	Drop(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context, name string) (int, error)
	Add(ctx context.Context, name string, docs []domain.Document) (int64, error)
	// Dimension is the corpus vector size; 0 when the backend cannot tell.
	Dimension(ctx context.Context, name string) (int, error)
	Documents(ctx context.Context, name string, offset, limit int) ([]domain.StoredDocument, error)
}
