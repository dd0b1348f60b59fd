// Package postgres stores corpora as pgvector tables via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/semwalk/internal/db"
)

// PostgreSQL error codes mapped to db sentinels.
const (
	codeUndefinedTable = "42P01"
	codeDuplicateTable = "42P07"
	// pgvector raises data_exception for "expected N dimensions, not M".
	codeDataException = "22000"
)

// Config holds connection parameters for a pgvector store.
type Config struct {
	DSN      string
	MaxConns int32
}

// Row is one stored document. Score is set only by SearchKNN.
type Row struct {
	ID        int64
	Content   string
	Embedding []float32
	Score     float64
}

// Store runs pgvector SQL over a pgx pool. Every corpus is one table with
// columns id, content and embedding.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL and makes sure the vector extension exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate installs the pgvector extension.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// CreateTable creates a corpus table with an HNSW cosine index.
func (s *Store) CreateTable(ctx context.Context, table string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	ident, err := identifier(table)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &db.Error{Op: db.OpCreateTable, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createTableSQL(ident, dim)); err != nil {
		return classify(db.OpCreateTable, err)
	}
	if _, err := tx.Exec(ctx, createIndexSQL(ident, table)); err != nil {
		return classify(db.OpCreateTable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return &db.Error{Op: db.OpCreateTable, Err: err}
	}
	return nil
}

// DropTable removes a corpus table.
func (s *Store) DropTable(ctx context.Context, table string) error {
	ident, err := identifier(table)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DROP TABLE "+ident); err != nil {
		return classify(db.OpDropTable, err)
	}
	return nil
}

// ListTables returns corpus tables (those with a vector "embedding" column)
// whose names start with prefix.
func (s *Store) ListTables(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		  AND column_name = 'embedding'
		  AND udt_name = 'vector'
		  AND starts_with(table_name, $1)
		ORDER BY table_name`, prefix)
	if err != nil {
		return nil, &db.Error{Op: db.OpListTables, Err: err}
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &db.Error{Op: db.OpListTables, Err: err}
	}
	return names, nil
}

// CountRows returns the number of documents in a corpus table.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	ident, err := identifier(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+ident).Scan(&n); err != nil {
		return 0, classify(db.OpSelect, err)
	}
	return int(n), nil
}

// InsertRows appends documents in one batch and returns their ids in input
// order. IDs are assigned by the table's sequence.
func (s *Store) InsertRows(ctx context.Context, table string, rows []Row) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ident, err := identifier(table)
	if err != nil {
		return nil, err
	}

	stmt := "INSERT INTO " + ident + " (content, embedding) VALUES ($1, $2::vector) RETURNING id"
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(stmt, r.Content, FormatVector(r.Embedding))
	}

	br := s.pool.SendBatch(ctx, batch)
	ids := make([]int64, len(rows))
	for i := range rows {
		if err := br.QueryRow().Scan(&ids[i]); err != nil {
			_ = br.Close()
			return nil, classify(db.OpInsert, fmt.Errorf("row %d: %w", i, err))
		}
	}
	if err := br.Close(); err != nil {
		return nil, classify(db.OpInsert, err)
	}
	return ids, nil
}

// ColumnDimension returns the declared size of the table's vector column, or
// 0 when the column is an unconstrained vector.
func (s *Store) ColumnDimension(ctx context.Context, table string) (int, error) {
	ident, err := identifier(table)
	if err != nil {
		return 0, err
	}
	var typmod int32
	err = s.pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding' AND NOT attisdropped`, ident).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		// a table without an embedding column is not a corpus
		return 0, db.ErrIndexNotFound
	}
	if err != nil {
		return 0, classify(db.OpSelect, err)
	}
	return max(int(typmod), 0), nil
}

// ListRows returns rows in id order, skipping offset and returning at most
// limit of them. Score is left zero.
func (s *Store) ListRows(ctx context.Context, table string, offset, limit int) ([]Row, error) {
	ident, err := identifier(table)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		"SELECT id, content, embedding::text FROM "+ident+" ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, classify(db.OpSelect, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var (
			r   Row
			vec string
		)
		if err := rows.Scan(&r.ID, &r.Content, &vec); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		if r.Embedding, err = ParseVector(vec); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(db.OpSelect, err)
	}
	return out, nil
}

// SearchKNN returns the k nearest rows by cosine distance; Score is
// 1 - distance. The query orders by distance alone so the HNSW index serves
// it; equal scores are then put in insertion id order here. A zero vector
// has no cosine distance and scores 0.
func (s *Store) SearchKNN(ctx context.Context, table string, vector []float32, k int) ([]Row, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	ident, err := identifier(table)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, knnSQL(ident), FormatVector(vector), k)
	if err != nil {
		return nil, classify(db.OpSelect, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r   Row
			vec string
		)
		if err := rows.Scan(&r.ID, &r.Content, &vec, &r.Score); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		if r.Embedding, err = ParseVector(vec); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		r.Score = finiteScore(r.Score)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(db.OpSelect, err)
	}
	sortByScore(out)
	return out, nil
}

// finiteScore maps the NaN that <=> yields for a zero vector to 0.
func finiteScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return score
}

// sortByScore orders rows by descending score, then ascending id.
func sortByScore(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].ID < rows[j].ID
	})
}

func createTableSQL(ident string, dim int) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, ident, dim)
}

func createIndexSQL(ident, table string) string {
	idx := pgx.Identifier{table + "_embedding_idx"}.Sanitize()
	return "CREATE INDEX " + idx + " ON " + ident + " USING hnsw (embedding vector_cosine_ops)"
}

func knnSQL(ident string) string {
	return `SELECT id, content, embedding::text, 1 - (embedding <=> $1::vector) AS score
		FROM ` + ident + `
		ORDER BY embedding <=> $1::vector
		LIMIT $2`
}

// identifier quotes table. A name that cannot be a table reports
// db.ErrIndexNotFound: no such corpus can exist.
func identifier(table string) (string, error) {
	if !db.IsValidIdentifier(table) {
		return "", fmt.Errorf("invalid table name %q: %w", table, db.ErrIndexNotFound)
	}
	return pgx.Identifier{table}.Sanitize(), nil
}

// classify maps missing/duplicate table and vector size errors to db sentinels.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUndefinedTable:
			return db.ErrIndexNotFound
		case codeDuplicateTable:
			return db.ErrIndexExists
		case codeDataException:
			return fmt.Errorf("%w: %s", db.ErrDimensionMismatch, pgErr.Message)
		}
	}
	return &db.Error{Op: op, Err: err}
}
