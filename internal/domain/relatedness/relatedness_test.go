package relatedness

import (
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

const eps = 1e-6

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Embedding
		want float64
	}{
		{"identical", domain.Embedding{0.3, 0.4, 0.5}, domain.Embedding{0.3, 0.4, 0.5}, 1},
		{"scaled", domain.Embedding{1, 2}, domain.Embedding{2, 4}, 1},
		{"orthogonal", domain.Embedding{1, 0}, domain.Embedding{0, 1}, 0},
		{"opposite", domain.Embedding{1, 0}, domain.Embedding{-1, 0}, -1},
		{"diagonal", domain.Embedding{1, 0}, domain.Embedding{1, 1}, 1 / math.Sqrt2},
		{"zero norm", domain.Embedding{0, 0}, domain.Embedding{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > eps {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_Symmetric(t *testing.T) {
	a := domain.Embedding{0.12, -0.7, 0.33, 0.9}
	b := domain.Embedding{-0.4, 0.25, 0.8, 0.1}

	ab, err := Score(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := Score(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ab != ba {
		t.Errorf("expected symmetry, got %v and %v", ab, ba)
	}
}

func TestScore_DimensionMismatch(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Embedding
	}{
		{"different length", domain.Embedding{1, 2, 3}, domain.Embedding{1, 2}},
		{"both empty", domain.Embedding{}, domain.Embedding{}},
		{"one nil", nil, domain.Embedding{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(tt.a, tt.b)
			if !errors.Is(err, domain.ErrDimensionMismatch) {
				t.Errorf("expected ErrDimensionMismatch, got %v", err)
			}
		})
	}
}

func TestScore_DoesNotMutate(t *testing.T) {
	a := domain.Embedding{3, 4}
	b := domain.Embedding{4, 3}

	if _, err := Score(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a[0] != 3 || a[1] != 4 || b[0] != 4 || b[1] != 3 {
		t.Error("inputs were modified")
	}
}
