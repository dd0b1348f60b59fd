// Package valkey implements db.Store on Valkey with the valkey-search module.
// It shares the wire protocol with the redis package and differs where
// valkey-search lacks a feature.
package valkey

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/semwalk/internal/db"
	"github.com/kailas-cloud/semwalk/internal/db/redis"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Valkey store.
type Config = redis.Config

// Store implements db.Store for Valkey.
type Store struct {
	*redis.Store
}

// NewStore creates a Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	client, err := redis.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Store: redis.NewStoreWithClient(client)}, nil
}

// DropIndex removes an FT index. valkey-search has no DD flag, so documents
// are removed by scanning keyPrefix.
func (s *Store) DropIndex(ctx context.Context, name, keyPrefix string, deleteDocs bool) error {
	if err := s.Store.DropIndex(ctx, name, keyPrefix, false); err != nil {
		return err //nolint:wrapcheck // already classified by the shared store
	}
	if !deleteDocs || keyPrefix == "" {
		return nil
	}

	keys, err := s.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan documents: %w", err)
	}
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		if err := s.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("delete documents: %w", err)
		}
	}
	return nil
}

const deleteBatch = 500

// Count counts documents by scanning keyPrefix: valkey-search rejects a bare
// "*" query without KNN. The index must exist.
func (s *Store) Count(ctx context.Context, index, keyPrefix string) (int, error) {
	ok, err := s.IndexExists(ctx, index)
	if err != nil {
		return 0, err //nolint:wrapcheck // already a db.Error
	}
	if !ok {
		return 0, db.ErrIndexNotFound
	}

	var (
		cursor uint64
		total  int
	)
	for {
		cmd := s.Client().B().Scan().Cursor(cursor).Match(keyPrefix + "*").Count(1000).Build()
		res, err := s.Client().Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return 0, &db.Error{Op: db.OpScan, Err: err}
		}
		total += len(res.Elements)
		cursor = res.Cursor
		if cursor == 0 {
			return total, nil
		}
	}
}

// ListIndexes returns every index name. Valkey replies with FT._LIST as well,
// but some builds prefix the names with the database number.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	names, err := s.Store.ListIndexes(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // already a db.Error
	}
	for i, n := range names {
		if num, rest, ok := strings.Cut(n, "/"); ok && isDigits(num) {
			names[i] = rest
		}
	}
	return names, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{Store: redis.NewStoreWithClient(c)}
}
