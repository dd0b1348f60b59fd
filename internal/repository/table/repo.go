// Package table serves read-only corpora held in memory, loaded from CSV or
// JSON Lines files. Search is a brute-force scan.
package table

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/domain/relatedness"
)

// Repo holds named in-memory tables. It is read-only after construction and
// safe for concurrent use.
type Repo struct {
	embed  domain.Embedder
	tables map[string][]domain.Document
}

// New creates a repository over already loaded tables.
func New(embed domain.Embedder, tables map[string][]domain.Document) *Repo {
	if tables == nil {
		tables = map[string][]domain.Document{}
	}
	return &Repo{embed: embed, tables: tables}
}

// Load reads every source file into a repository.
func Load(embed domain.Embedder, sources []Source) (*Repo, error) {
	tables := make(map[string][]domain.Document, len(sources))
	for _, src := range sources {
		if _, dup := tables[src.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", src.Name)
		}
		docs, err := LoadFile(src)
		if err != nil {
			return nil, fmt.Errorf("load table %s: %w", src.Name, err)
		}
		tables[src.Name] = docs
	}
	return New(embed, tables), nil
}

// Search scores every row against the query vector and returns the topK best.
// Equal scores keep file order.
func (r *Repo) Search(
	ctx context.Context, corpus string, q domain.Query, topK int,
) (domain.SearchResponse, error) {
	docs, ok := r.tables[corpus]
	if !ok {
		return domain.SearchResponse{}, fmt.Errorf("search %s: %w", corpus, domain.ErrCorpusNotFound)
	}
	vec, err := domain.ResolveQuery(ctx, r.embed, q)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	hits := make([]domain.Hit, len(docs))
	for i, d := range docs {
		s, err := relatedness.Score(vec, d.Embedding)
		if err != nil {
			return domain.SearchResponse{}, fmt.Errorf("search %s: %w", corpus, err)
		}
		hits[i] = domain.Hit{Document: d, Score: s}
	}
	domain.SortHits(hits)
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return domain.SearchResponse{QueryEmbedding: vec, Hits: hits}, nil
}

// List returns table names, sorted.
func (r *Repo) List(context.Context) ([]string, error) {
	out := make([]string, 0, len(r.tables))
	for n := range r.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Count returns the number of rows in a table.
func (r *Repo) Count(_ context.Context, corpus string) (int, error) {
	docs, ok := r.tables[corpus]
	if !ok {
		return 0, fmt.Errorf("count %s: %w", corpus, domain.ErrCorpusNotFound)
	}
	return len(docs), nil
}

// Dimension returns the embedding size of a table, 0 when it has no rows.
func (r *Repo) Dimension(_ context.Context, corpus string) (int, error) {
	docs, ok := r.tables[corpus]
	if !ok {
		return 0, fmt.Errorf("dimension of %s: %w", corpus, domain.ErrCorpusNotFound)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return len(docs[0].Embedding), nil
}

// Documents returns rows in file order; ids are 1-based row numbers.
func (r *Repo) Documents(_ context.Context, corpus string, offset, limit int) ([]domain.StoredDocument, error) {
	docs, ok := r.tables[corpus]
	if !ok {
		return nil, fmt.Errorf("documents of %s: %w", corpus, domain.ErrCorpusNotFound)
	}
	out := []domain.StoredDocument{}
	for i := offset; i < len(docs) && i < offset+limit; i++ {
		out = append(out, domain.StoredDocument{ID: int64(i + 1), Document: docs[i]})
	}
	return out, nil
}

// Create is not supported: tables come from files.
func (r *Repo) Create(context.Context, string, int) error {
	return fmt.Errorf("table backend is read-only: %w", domain.ErrNotImplemented)
}

// Drop is not supported.
func (r *Repo) Drop(context.Context, string) error {
	return fmt.Errorf("table backend is read-only: %w", domain.ErrNotImplemented)
}

// Add is not supported.
func (r *Repo) Add(context.Context, string, []domain.Document) (int64, error) {
	return 0, fmt.Errorf("table backend is read-only: %w", domain.ErrNotImplemented)
}
