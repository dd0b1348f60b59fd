package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "staging", "local", "dev", "docker"} {
		if _, err := NewLogger(env); err != nil {
			t.Errorf("env %s: unexpected error: %v", env, err)
		}
	}
	if _, err := NewLogger("moon"); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stored := zap.New(core)
	fallback := zap.New(core).Named("fallback")

	FromContext(ContextWithLogger(context.Background(), stored)).Info("stored")
	FromContext(context.Background(), fallback).Info("fallback")
	FromContext(context.Background()).Info("dropped")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].LoggerName != "fallback" {
		t.Errorf("expected fallback logger, got %q", entries[1].LoggerName)
	}
}
