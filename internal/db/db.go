// Package db defines the driver-agnostic storage contracts for vector indexes.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based document reads and writes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	// HGetMulti reads fields of several hashes; a missing hash yields a nil map.
	HGetMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetWithTTL stores value; a zero ttl means no expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// IncrBy atomically adds val and returns the new value.
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex removes the index; with deleteDocs it also removes the keys under keyPrefix.
	DropIndex(ctx context.Context, name, keyPrefix string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	// Count returns the number of documents indexed by index (stored under keyPrefix).
	Count(ctx context.Context, index, keyPrefix string) (int, error)
}
