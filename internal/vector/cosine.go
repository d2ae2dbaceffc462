// Package vector holds the numeric helpers used to rank passage embeddings.
package vector

import (
	"errors"
	"math"
)

var (
	// ErrEmpty is returned when a vector has no components
	ErrEmpty = errors.New("vector is empty")
	// ErrDimensionMismatch is returned when a vector does not have the deployment dimensionality
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNonFinite is returned when a vector contains NaN or Inf
	ErrNonFinite = errors.New("vector contains non-finite component")
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
//
// Vectors of different length, vectors with a zero norm and vectors with
// NaN or Inf components score 0. The sums are accumulated in float64 in index order so identical inputs always give
// bit-identical results.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}

// Validate checks that v is non-empty, has the expected dimensionality and
// only finite components. A dimensions value <= 0 skips the length check.
func Validate(v []float32, dimensions int) error {
	if len(v) == 0 {
		return ErrEmpty
	}
	if dimensions > 0 && len(v) != dimensions {
		return ErrDimensionMismatch
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNonFinite
		}
	}
	return nil
}
