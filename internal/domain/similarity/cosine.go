// Package similarity implements vector similarity measures.
package similarity

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/taskctx/internal/domain"
)

// Cosine returns the cosine similarity of a and b.
// Vectors must have the same non-zero length. A zero-magnitude vector yields 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("empty vector: %w", domain.ErrInvalidInput)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch %d != %d: %w", len(a), len(b), domain.ErrInvalidInput)
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
