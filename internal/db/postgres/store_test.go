package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/semwalk/internal/db"
)

func TestVectorFormatRoundTrip(t *testing.T) {
	v := []float32{0.25, -1, 3.5e-7, 12}
	s := FormatVector(v)
	if s != "[0.25,-1,3.5e-07,12]" {
		t.Errorf("unexpected format %q", s)
	}
	back, err := ParseVector(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range v {
		if back[i] != v[i] {
			t.Fatalf("position %d: expected %v, got %v", i, v[i], back[i])
		}
	}
}

func TestParseVector_Errors(t *testing.T) {
	for _, s := range []string{"", "1,2", "[1,x]", "[1,2"} {
		if _, err := ParseVector(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
	if v, err := ParseVector("[]"); err != nil || v != nil {
		t.Errorf("expected empty vector, got %v, %v", v, err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"undefined table", &pgconn.PgError{Code: codeUndefinedTable}, db.ErrIndexNotFound},
		{"duplicate table", &pgconn.PgError{Code: codeDuplicateTable}, db.ErrIndexExists},
		{"wrapped undefined", fmt.Errorf("row 0: %w", &pgconn.PgError{Code: codeUndefinedTable}), db.ErrIndexNotFound},
		{"vector size", &pgconn.PgError{Code: codeDataException, Message: "expected 3 dimensions, not 2"}, db.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(db.OpSelect, tt.err); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	other := classify(db.OpInsert, errors.New("connection refused"))
	var dbErr *db.Error
	if !errors.As(other, &dbErr) || dbErr.Op != db.OpInsert {
		t.Errorf("expected db.Error, got %v", other)
	}
}

func TestIdentifier(t *testing.T) {
	got, err := identifier("semwalk_news")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `"semwalk_news"` {
		t.Errorf("unexpected identifier %s", got)
	}
	for _, name := range []string{`news"; DROP TABLE x; --`, "no such corpus", ""} {
		if _, err := identifier(name); !errors.Is(err, db.ErrIndexNotFound) {
			t.Errorf("%q: expected ErrIndexNotFound, got %v", name, err)
		}
	}
}

func TestKNNSQL_OrdersByDistanceOnly(t *testing.T) {
	q := knnSQL(`"t"`)
	if !strings.Contains(q, "ORDER BY embedding <=> $1::vector\n") {
		t.Errorf("expected a plain distance ordering the HNSW index can serve, got %s", q)
	}
	if strings.Contains(q, ", id") {
		t.Errorf("secondary sort keys disable the index, got %s", q)
	}
}

func TestSortByScore_TiesByID(t *testing.T) {
	rows := []Row{
		{ID: 7, Content: "late-tie", Score: 0.5},
		{ID: 1, Content: "low", Score: 0.1},
		{ID: 3, Content: "early-tie", Score: 0.5},
		{ID: 9, Content: "high", Score: 0.9},
	}
	sortByScore(rows)

	want := []string{"high", "early-tie", "late-tie", "low"}
	for i, w := range want {
		if rows[i].Content != w {
			t.Errorf("position %d: expected %s, got %s", i, w, rows[i].Content)
		}
	}
}

func TestFiniteScore(t *testing.T) {
	if got := finiteScore(math.NaN()); got != 0 {
		t.Errorf("NaN must score 0, got %v", got)
	}
	if got := finiteScore(0.75); got != 0.75 {
		t.Errorf("finite score must pass through, got %v", got)
	}
}

// TestStore_Integration runs against a real pgvector database when
// SEMWALK_TEST_POSTGRES_DSN is set.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("SEMWALK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SEMWALK_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewStore(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	table := fmt.Sprintf("semwalk_test_%d", time.Now().UnixNano())
	if err := s.CreateTable(ctx, table, 2); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = s.DropTable(context.Background(), table) }()

	if err := s.CreateTable(ctx, table, 2); !errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}

	ids, err := s.InsertRows(ctx, table, []Row{
		{Content: "east", Embedding: []float32{1, 0}},
		{Content: "north", Embedding: []float32{0, 1}},
		{Content: "east-twin", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(ids) != 3 || ids[1] != ids[0]+1 {
		t.Fatalf("expected sequential ids, got %v", ids)
	}

	n, err := s.CountRows(ctx, table)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 rows, got %d, %v", n, err)
	}

	rows, err := s.SearchKNN(ctx, table, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 3 || rows[0].Content != "east" || rows[1].Content != "east-twin" {
		t.Fatalf("unexpected order %+v", rows)
	}

	dim, err := s.ColumnDimension(ctx, table)
	if err != nil || dim != 2 {
		t.Fatalf("expected dimension 2, got %d, %v", dim, err)
	}

	page, err := s.ListRows(ctx, table, 1, 5)
	if err != nil || len(page) != 2 || page[0].Content != "north" {
		t.Fatalf("unexpected page %+v, %v", page, err)
	}

	if _, err := s.InsertRows(ctx, table, []Row{{Content: "3d", Embedding: []float32{1, 0, 0}}}); !errors.Is(err, db.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	if _, err := s.CountRows(ctx, table+"_missing"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if _, err := s.ColumnDimension(ctx, table+"_missing"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}
