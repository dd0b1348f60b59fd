// Package conversation persists chat conversations in SQLite.
package conversation

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

//go:embed schema.sql
var schema string

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Repo is a SQLite-backed conversation log.
type Repo struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	if dsn == "" {
		dsn = "data/conversations.db"
	}
	if dsn != MemoryDSN {
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close releases the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Ping checks the database handle.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create registers a new conversation.
func (r *Repo) Create(ctx context.Context, id string, createdAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		id, createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrAlreadyExists)
	}
	return nil
}

// Exists reports whether a conversation is registered.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query conversation: %w", err)
	}
	return true, nil
}

// Append stores messages in order. responseID ties them to the completion
// that produced or consumed them.
func (r *Repo) Append(ctx context.Context, id, responseID string, msgs ...domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query conversation: %w", err)
	}

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, response_id, role, content) VALUES (?, ?, ?, ?)`,
			id, responseID, string(m.Role), m.Content,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Messages returns the conversation history, oldest first. With limit > 0
// only the latest limit messages are returned.
func (r *Repo) Messages(ctx context.Context, id string, limit int) ([]domain.Message, error) {
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Message
	for rows.Next() {
		var (
			m    domain.Message
			role string
		)
		if err := rows.Scan(&role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}
