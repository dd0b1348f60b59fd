package index

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/semwalk/internal/db"
	"github.com/kailas-cloud/semwalk/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	indexes  map[string]*db.IndexDefinition
	hashes   map[string]map[string]string
	counters map[string]int64
	values   map[string][]byte
	knn      *db.SearchResult
	lastKNN  *db.KNNQuery
	dropped  []string
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		indexes:  make(map[string]*db.IndexDefinition),
		hashes:   make(map[string]map[string]string),
		counters: make(map[string]int64),
		values:   make(map[string][]byte),
	}
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, it := range items {
		f.hashes[it.Key] = it.Fields
	}
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
		delete(f.counters, k)
		delete(f.values, k)
	}
	return nil
}

func (f *fakeStore) HGetMulti(_ context.Context, keys []string, fields ...string) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		h, ok := f.hashes[k]
		if !ok {
			continue
		}
		out[i] = make(map[string]string, len(fields))
		for _, field := range fields {
			out[i][field] = h[field]
		}
	}
	return out, nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for k := range f.hashes {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counters[key] += val
	return f.counters[key], nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) DropIndex(_ context.Context, name, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) ListIndexes(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.indexes))
	for n := range f.indexes {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKNN = q
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.indexes[q.IndexName]; !ok {
		return nil, db.ErrIndexNotFound
	}
	return f.knn, nil
}

func (f *fakeStore) Count(_ context.Context, index, keyPrefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[index]; !ok {
		return 0, db.ErrIndexNotFound
	}
	n := 0
	for k := range f.hashes {
		if len(k) >= len(keyPrefix) && k[:len(keyPrefix)] == keyPrefix {
			n++
		}
	}
	return n, nil
}

type fakeEmbedder struct {
	vec   domain.Embedding
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	e.calls++
	return domain.EmbeddingResult{Embedding: e.vec}, e.err
}

func entry(key, content string, vec []float32, score float64) db.SearchEntry {
	return db.SearchEntry{
		Key:   key,
		Score: score,
		Fields: map[string]string{
			fieldContent: content,
			fieldVector:  string(db.EncodeVector(vec)),
		},
	}
}
