package valkey

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/semwalk/internal/db"
)

func TestCount_ScansPrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "semwalk:news")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"))))

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && cmd[3] == "semwalk:news:doc:*"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisString("7"),
					mock.RedisArray(mock.RedisString("semwalk:news:doc:1"), mock.RedisString("semwalk:news:doc:2")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisString("0"),
				mock.RedisArray(mock.RedisString("semwalk:news:doc:3")),
			))
		}).Times(2)

	n, err := NewStoreForTest(c).Count(context.Background(), "semwalk:news", "semwalk:news:doc:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestCount_MissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "gone")).
		Return(mock.Result(mock.RedisError("Index with name 'gone' not found")))

	_, err := NewStoreForTest(c).Count(context.Background(), "gone", "gone:")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestDropIndex_DeletesDocumentsByScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
			Return(mock.Result(mock.RedisString("OK"))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
			Return(mock.Result(mock.RedisArray(
				mock.RedisString("0"),
				mock.RedisArray(mock.RedisString("p:1"), mock.RedisString("p:2")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("DEL", "p:1", "p:2")).
			Return(mock.Result(mock.RedisInt64(2))),
	)

	if err := NewStoreForTest(c).DropIndex(context.Background(), "idx", "p:", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_KeepDocuments(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewStoreForTest(c).DropIndex(context.Background(), "idx", "p:", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropIndex_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
		Return(mock.Result(mock.RedisError("Index with name 'idx' not found")))

	err := NewStoreForTest(c).DropIndex(context.Background(), "idx", "p:", true)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestListIndexes_StripsDatabasePrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT._LIST")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("0/semwalk:a"),
			mock.RedisString("semwalk:b"),
			mock.RedisString("x/y"),
		)))

	names, err := NewStoreForTest(c).ListIndexes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"semwalk:a", "semwalk:b", "x/y"}
	for i, w := range want {
		if names[i] != w {
			t.Errorf("position %d: expected %q, got %q", i, w, names[i])
		}
	}
}
