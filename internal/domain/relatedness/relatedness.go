// Package relatedness scores two embeddings as 1 minus their cosine distance.
package relatedness

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// Score returns 1 - cosine_distance(a, b), i.e. their cosine similarity.
// Vectors of different or zero length yield domain.ErrDimensionMismatch.
// A zero-norm vector scores 0.
func Score(a, b domain.Embedding) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// float rounding can push identical vectors past 1
	return math.Max(-1, math.Min(1, sim)), nil
}
