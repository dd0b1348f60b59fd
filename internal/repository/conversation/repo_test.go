package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(context.Background(), MemoryDSN)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCreateAndExists(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	ok, err := r.Exists(ctx, "abc")
	if err != nil || ok {
		t.Fatalf("expected missing conversation, got %v, %v", ok, err)
	}
	if err := r.Create(ctx, "abc", time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := r.Exists(ctx, "abc"); !ok {
		t.Fatal("expected conversation to exist")
	}
	if err := r.Create(ctx, "abc", time.Now()); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAppendAndMessages(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.Create(ctx, "c1", time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := r.Append(ctx, "c1", "resp-1",
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.Message{Role: domain.RoleAssistant, Content: "hi"},
	); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := r.Append(ctx, "c1", "resp-2",
		domain.Message{Role: domain.RoleUser, Content: "how are you"},
		domain.Message{Role: domain.RoleAssistant, Content: "fine"},
	); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := r.Messages(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(all) != 4 || all[0].Content != "hello" || all[3].Content != "fine" {
		t.Fatalf("unexpected history %+v", all)
	}
	if all[1].Role != domain.RoleAssistant {
		t.Errorf("expected assistant role, got %q", all[1].Role)
	}

	last, err := r.Messages(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(last) != 2 || last[0].Content != "how are you" || last[1].Content != "fine" {
		t.Errorf("expected latest two oldest-first, got %+v", last)
	}
}

func TestUnknownConversation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.Messages(ctx, "nope", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Messages: expected ErrNotFound, got %v", err)
	}
	err := r.Append(ctx, "nope", "", domain.Message{Role: domain.RoleUser, Content: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Append: expected ErrNotFound, got %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.db")
	ctx := context.Background()

	r, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := r.Create(ctx, "persisted", time.Now()); err != nil {
		t.Fatal(err)
	}
	_ = r.Close()

	r, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = r.Close() }()
	if ok, _ := r.Exists(ctx, "persisted"); !ok {
		t.Error("expected conversation to survive reopen")
	}
}
