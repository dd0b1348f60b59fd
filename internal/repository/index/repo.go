// Package index serves corpora stored as HASH documents in a Valkey or Redis
// FT vector index: similarity search for walks and corpus management.
package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/semwalk/internal/db"
	"github.com/kailas-cloud/semwalk/internal/domain"
)

// store is the consumer interface for index-backed corpora (ISP).
//
//nolint:interfacebloat // the repo needs hash writes, counters and index management
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name, keyPrefix string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	Count(ctx context.Context, index, keyPrefix string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the walk provider and corpus manager over an FT index.
type Repo struct {
	store store
	embed domain.Embedder
	keys  keys
	hnsw  HNSWConfig
}

// New creates an index repository. prefix namespaces every key it touches.
func New(s store, embed domain.Embedder, prefix string) *Repo {
	return &Repo{
		store: s,
		embed: embed,
		keys:  keys{prefix: prefix},
		hnsw:  HNSWConfig{M: 16, EFConstruct: 200},
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Search embeds text queries, runs KNN and returns hits by descending score.
func (r *Repo) Search(
	ctx context.Context, corpus string, q domain.Query, topK int,
) (domain.SearchResponse, error) {
	vec, err := domain.ResolveQuery(ctx, r.embed, q)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.keys.index(corpus),
		VectorField:  fieldVector,
		Vector:       vec,
		K:            topK,
		ReturnFields: []string{fieldContent, fieldVector},
	})
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("search %s: %w", corpus, mapStoreErr(err))
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		emb, err := db.DecodeVector([]byte(e.Fields[fieldVector]))
		if err != nil {
			return domain.SearchResponse{}, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		hits = append(hits, domain.Hit{
			Document: domain.Document{Text: e.Fields[fieldContent], Embedding: emb},
			Score:    e.Score,
		})
	}
	domain.SortHits(hits)

	return domain.SearchResponse{QueryEmbedding: vec, Hits: hits}, nil
}

// Create defines an empty corpus of the given dimension and records the
// dimension next to the index.
func (r *Repo) Create(ctx context.Context, corpus string, dim int) error {
	def := db.NewVectorIndex(r.keys.index(corpus), r.keys.docPrefix(corpus), fieldVector, dim)
	def.Fields[0].VectorM = r.hnsw.M
	def.Fields[0].VectorEFConstruct = r.hnsw.EFConstruct

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create corpus %s: %w", corpus, mapStoreErr(err))
	}
	if err := r.store.SetWithTTL(ctx, r.keys.dim(corpus), []byte(strconv.Itoa(dim)), 0); err != nil {
		return fmt.Errorf("create corpus %s dimension: %w", corpus, mapStoreErr(err))
	}
	return nil
}

// Drop removes the corpus index, its documents and its bookkeeping keys.
func (r *Repo) Drop(ctx context.Context, corpus string) error {
	if err := r.store.DropIndex(ctx, r.keys.index(corpus), r.keys.docPrefix(corpus), true); err != nil {
		return fmt.Errorf("drop corpus %s: %w", corpus, mapStoreErr(err))
	}
	if err := r.store.Del(ctx, r.keys.seq(corpus), r.keys.dim(corpus)); err != nil {
		return fmt.Errorf("drop corpus %s bookkeeping: %w", corpus, mapStoreErr(err))
	}
	return nil
}

// Dimension returns the vector dimension recorded at Create, or 0 for an
// index created without one.
func (r *Repo) Dimension(ctx context.Context, corpus string) (int, error) {
	if err := r.mustExist(ctx, corpus); err != nil {
		return 0, fmt.Errorf("dimension of %s: %w", corpus, err)
	}
	raw, err := r.store.Get(ctx, r.keys.dim(corpus))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("dimension of %s: %w", corpus, mapStoreErr(err))
	}
	dim, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("dimension of %s: bad value %q", corpus, raw)
	}
	return dim, nil
}

// Documents returns documents in id order, skipping offset and returning at
// most limit of them.
func (r *Repo) Documents(ctx context.Context, corpus string, offset, limit int) ([]domain.StoredDocument, error) {
	if err := r.mustExist(ctx, corpus); err != nil {
		return nil, fmt.Errorf("documents of %s: %w", corpus, err)
	}
	keys, err := r.store.Scan(ctx, r.keys.docPrefix(corpus)+"*")
	if err != nil {
		return nil, fmt.Errorf("documents of %s: %w", corpus, mapStoreErr(err))
	}

	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		if id, ok := r.keys.docID(corpus, k); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if offset >= len(ids) {
		return []domain.StoredDocument{}, nil
	}
	ids = ids[offset:min(offset+limit, len(ids))]

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = r.keys.doc(corpus, id)
	}
	hashes, err := r.store.HGetMulti(ctx, docKeys, fieldContent, fieldVector)
	if err != nil {
		return nil, fmt.Errorf("documents of %s: %w", corpus, mapStoreErr(err))
	}

	out := make([]domain.StoredDocument, 0, len(ids))
	for i, h := range hashes {
		if h == nil {
			// deleted between SCAN and HMGET
			continue
		}
		emb, err := db.DecodeVector([]byte(h[fieldVector]))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", docKeys[i], err)
		}
		out = append(out, domain.StoredDocument{
			ID:       ids[i],
			Document: domain.Document{Text: h[fieldContent], Embedding: emb},
		})
	}
	return out, nil
}

// List returns the names of all corpora under the prefix, sorted.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	names, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpora: %w", mapStoreErr(err))
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		if corpus, ok := strings.CutPrefix(n, r.keys.prefix); ok && corpus != "" {
			out = append(out, corpus)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Count returns the number of documents in a corpus.
func (r *Repo) Count(ctx context.Context, corpus string) (int, error) {
	n, err := r.store.Count(ctx, r.keys.index(corpus), r.keys.docPrefix(corpus))
	if err != nil {
		return 0, fmt.Errorf("count corpus %s: %w", corpus, mapStoreErr(err))
	}
	return n, nil
}

// Add appends documents with ids continuing after the last assigned one and
// returns the first new id.
func (r *Repo) Add(ctx context.Context, corpus string, docs []domain.Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	dim, err := r.Dimension(ctx, corpus)
	if err != nil {
		return 0, fmt.Errorf("add to %s: %w", corpus, err)
	}
	// FT silently skips hashes with a wrong-sized vector.
	if err := domain.CheckDimensions(docs, dim); err != nil {
		return 0, fmt.Errorf("add to %s: %w", corpus, err)
	}

	last, err := r.store.IncrBy(ctx, r.keys.seq(corpus), int64(len(docs)))
	if err != nil {
		return 0, fmt.Errorf("allocate ids in %s: %w", corpus, mapStoreErr(err))
	}
	first := last - int64(len(docs)) + 1

	items := make([]db.HashSetItem, len(docs))
	for i, d := range docs {
		items[i] = db.HashSetItem{
			Key: r.keys.doc(corpus, first+int64(i)),
			Fields: map[string]string{
				fieldContent: d.Text,
				fieldVector:  string(db.EncodeVector(d.Embedding)),
			},
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("add to %s: %w", corpus, mapStoreErr(err))
	}
	return first, nil
}

func (r *Repo) mustExist(ctx context.Context, corpus string) error {
	ok, err := r.store.IndexExists(ctx, r.keys.index(corpus))
	if err != nil {
		return mapStoreErr(err)
	}
	if !ok {
		return domain.ErrCorpusNotFound
	}
	return nil
}

// mapStoreErr translates db sentinels to domain errors; anything else is a
// backend failure.
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
