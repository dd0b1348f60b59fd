package domain

import (
	"context"
	"errors"
	"fmt"
)

// Query is what a similarity search is issued with: either raw text that the
// provider must embed, or a ready vector. The set of implementations is closed.
type Query interface {
	isQuery()
}

// TextQuery asks the provider to embed Text with its pinned model before searching.
type TextQuery struct {
	Text string
}

// VectorQuery is searched as-is.
type VectorQuery struct {
	Vector Embedding
}

func (TextQuery) isQuery()   {}
func (VectorQuery) isQuery() {}

// IsEmptyQuery reports whether q carries nothing to search with.
func IsEmptyQuery(q Query) bool {
	switch v := q.(type) {
	case TextQuery:
		return v.Text == ""
	case VectorQuery:
		return len(v.Vector) == 0
	default:
		return true
	}
}

// ResolveQuery returns the vector to search with, embedding text queries via e.
// Embedding failures are reported as ErrProviderUnavailable.
func ResolveQuery(ctx context.Context, e Embedder, q Query) (Embedding, error) {
	switch v := q.(type) {
	case VectorQuery:
		if len(v.Vector) == 0 {
			return nil, fmt.Errorf("%w: empty query vector", ErrDimensionMismatch)
		}
		return v.Vector, nil
	case TextQuery:
		if e == nil {
			return nil, fmt.Errorf("text query: %w: no embedder configured", ErrNotImplemented)
		}
		res, err := e.Embed(ctx, v.Text)
		if err != nil {
			if errors.Is(err, ErrProviderUnavailable) {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			return nil, fmt.Errorf("embed query: %w: %w", ErrProviderUnavailable, err)
		}
		return res.Embedding, nil
	default:
		return nil, fmt.Errorf("unsupported query type %T", q)
	}
}
