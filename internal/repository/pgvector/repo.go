// Package pgvector serves corpora stored as PostgreSQL tables with a pgvector
// embedding column. Each corpus is one table named <prefix><corpus>.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/semwalk/internal/db"
	"github.com/kailas-cloud/semwalk/internal/db/postgres"
	"github.com/kailas-cloud/semwalk/internal/domain"
)

type store interface {
	CreateTable(ctx context.Context, table string, dim int) error
	DropTable(ctx context.Context, table string) error
	ListTables(ctx context.Context, prefix string) ([]string, error)
	CountRows(ctx context.Context, table string) (int, error)
	InsertRows(ctx context.Context, table string, rows []postgres.Row) ([]int64, error)
	SearchKNN(ctx context.Context, table string, vector []float32, k int) ([]postgres.Row, error)
	ColumnDimension(ctx context.Context, table string) (int, error)
	ListRows(ctx context.Context, table string, offset, limit int) ([]postgres.Row, error)
}

// Repo implements the walk provider and corpus manager over pgvector tables.
type Repo struct {
	store  store
	embed  domain.Embedder
	prefix string
}

// New creates a pgvector repository.
func New(s store, embed domain.Embedder, prefix string) *Repo {
	return &Repo{store: s, embed: embed, prefix: prefix}
}

// table maps a corpus to its table. Names that no corpus can carry are
// reported as missing corpora without a round trip.
func (r *Repo) table(corpus string) (string, error) {
	if !domain.IsValidCorpusName(corpus) {
		return "", fmt.Errorf("corpus %q: %w", corpus, domain.ErrCorpusNotFound)
	}
	return r.prefix + corpus, nil
}

// Search embeds text queries and returns the nearest rows. The store orders
// equal distances by insertion id, so ties keep that order.
func (r *Repo) Search(
	ctx context.Context, corpus string, q domain.Query, topK int,
) (domain.SearchResponse, error) {
	table, err := r.table(corpus)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search: %w", err)
	}
	vec, err := domain.ResolveQuery(ctx, r.embed, q)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	rows, err := r.store.SearchKNN(ctx, table, vec, topK)
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search %s: %w", corpus, mapStoreErr(err))
	}

	hits := make([]domain.Hit, len(rows))
	for i, row := range rows {
		hits[i] = domain.Hit{
			Document: domain.Document{Text: row.Content, Embedding: row.Embedding},
			Score:    row.Score,
		}
	}
	domain.SortHits(hits)
	return domain.SearchResponse{QueryEmbedding: vec, Hits: hits}, nil
}

// Create creates the corpus table.
func (r *Repo) Create(ctx context.Context, corpus string, dim int) error {
	if !domain.IsValidCorpusName(corpus) {
		return fmt.Errorf("corpus name %q: %w", corpus, domain.ErrInvalidInput)
	}
	if err := r.store.CreateTable(ctx, r.prefix+corpus, dim); err != nil {
		return fmt.Errorf("create corpus %s: %w", corpus, mapStoreErr(err))
	}
	return nil
}

// Drop removes the corpus table.
func (r *Repo) Drop(ctx context.Context, corpus string) error {
	table, err := r.table(corpus)
	if err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if err := r.store.DropTable(ctx, table); err != nil {
		return fmt.Errorf("drop corpus %s: %w", corpus, mapStoreErr(err))
	}
	return nil
}

// List returns corpus names under the prefix.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	tables, err := r.store.ListTables(ctx, r.prefix)
	if err != nil {
		return nil, fmt.Errorf("list corpora: %w", mapStoreErr(err))
	}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if corpus, ok := strings.CutPrefix(t, r.prefix); ok && corpus != "" {
			out = append(out, corpus)
		}
	}
	return out, nil
}

// Count returns the number of documents in a corpus.
func (r *Repo) Count(ctx context.Context, corpus string) (int, error) {
	table, err := r.table(corpus)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, err := r.store.CountRows(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("count corpus %s: %w", corpus, mapStoreErr(err))
	}
	return n, nil
}

// Dimension returns the size of the corpus vector column.
func (r *Repo) Dimension(ctx context.Context, corpus string) (int, error) {
	table, err := r.table(corpus)
	if err != nil {
		return 0, fmt.Errorf("dimension: %w", err)
	}
	dim, err := r.store.ColumnDimension(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("dimension of %s: %w", corpus, mapStoreErr(err))
	}
	return dim, nil
}

// Documents returns rows in id order.
func (r *Repo) Documents(ctx context.Context, corpus string, offset, limit int) ([]domain.StoredDocument, error) {
	table, err := r.table(corpus)
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	rows, err := r.store.ListRows(ctx, table, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("documents of %s: %w", corpus, mapStoreErr(err))
	}
	out := make([]domain.StoredDocument, len(rows))
	for i, row := range rows {
		out[i] = domain.StoredDocument{
			ID:       row.ID,
			Document: domain.Document{Text: row.Content, Embedding: row.Embedding},
		}
	}
	return out, nil
}

// Add inserts documents and returns the id of the first one. The vector
// column rejects wrong-sized embeddings.
func (r *Repo) Add(ctx context.Context, corpus string, docs []domain.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	table, err := r.table(corpus)
	if err != nil {
		return 0, fmt.Errorf("add: %w", err)
	}
	rows := make([]postgres.Row, len(docs))
	for i, d := range docs {
		rows[i] = postgres.Row{Content: d.Text, Embedding: d.Embedding}
	}
	ids, err := r.store.InsertRows(ctx, table, rows)
	if err != nil {
		return 0, fmt.Errorf("add to %s: %w", corpus, mapStoreErr(err))
	}
	return ids[0], nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return domain.ErrCorpusNotFound
	case errors.Is(err, db.ErrIndexExists):
		return domain.ErrAlreadyExists
	case errors.Is(err, db.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", domain.ErrDimensionMismatch, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
}
