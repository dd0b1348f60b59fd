package domain

import (
	"context"
	"errors"
	"testing"
)

func TestSortHits_DescendingStable(t *testing.T) {
	hits := []Hit{
		{Document: Document{Text: "low"}, Score: 0.1},
		{Document: Document{Text: "tie-first"}, Score: 0.5},
		{Document: Document{Text: "high"}, Score: 0.9},
		{Document: Document{Text: "tie-second"}, Score: 0.5},
	}

	SortHits(hits)

	want := []string{"high", "tie-first", "tie-second", "low"}
	for i, w := range want {
		if hits[i].Document.Text != w {
			t.Errorf("position %d: expected %q, got %q", i, w, hits[i].Document.Text)
		}
	}
}

func TestIsEmptyQuery(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"nil", nil, true},
		{"empty text", TextQuery{}, true},
		{"text", TextQuery{Text: "hello"}, false},
		{"empty vector", VectorQuery{}, true},
		{"vector", VectorQuery{Vector: Embedding{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmptyQuery(tt.q); got != tt.want {
				t.Errorf("IsEmptyQuery() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fixedEmbedder struct {
	vec Embedding
	err error
}

func (f fixedEmbedder) Embed(context.Context, string) (EmbeddingResult, error) {
	return EmbeddingResult{Embedding: f.vec}, f.err
}

func TestResolveQuery(t *testing.T) {
	ctx := context.Background()

	vec, err := ResolveQuery(ctx, nil, VectorQuery{Vector: Embedding{1, 2}})
	if err != nil || len(vec) != 2 {
		t.Fatalf("vector query: got %v, %v", vec, err)
	}

	vec, err = ResolveQuery(ctx, fixedEmbedder{vec: Embedding{3}}, TextQuery{Text: "hi"})
	if err != nil || vec[0] != 3 {
		t.Fatalf("text query: got %v, %v", vec, err)
	}

	_, err = ResolveQuery(ctx, fixedEmbedder{err: errors.New("dial tcp: refused")}, TextQuery{Text: "hi"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	_, err = ResolveQuery(ctx, nil, TextQuery{Text: "hi"})
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

func TestIsValidCorpusName(t *testing.T) {
	valid := []string{"news", "news_2024", "a-b", "X"}
	invalid := []string{"", "has space", "a:b", "semi;colon", string(make([]byte, MaxCorpusNameLen+1))}
	for _, n := range valid {
		if !IsValidCorpusName(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}
	for _, n := range invalid {
		if IsValidCorpusName(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}

func TestCheckDimensions(t *testing.T) {
	docs := []Document{
		{Text: "a", Embedding: Embedding{1, 0, 0}},
		{Text: "b", Embedding: Embedding{0, 1}},
	}
	if err := CheckDimensions(docs[:1], 3); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckDimensions(docs, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if err := CheckDimensions(docs, 0); err != nil {
		t.Errorf("unknown dimension must not be checked, got %v", err)
	}
}
