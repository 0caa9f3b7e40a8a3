// Package vector provides exact nearest-neighbor search over an embedding catalog.
package vector

import (
	"fmt"
	"math"
	"strings"
)

// Metric is the distance used to rank catalog entries. Smaller is always closer.
type Metric int

const (
	// MetricL2 is squared Euclidean distance.
	MetricL2 Metric = iota
	// MetricCosine is 1 - cosine similarity.
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricCosine:
		return "cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseMetric parses "l2" or "cosine" (case-insensitive). Empty means l2.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "l2", "euclidean":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s (supported: l2, cosine)", s)
	}
}

// SquaredL2 returns Σ(a_i - b_i)^2 accumulated in float64.
// Vectors must have the same length.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// InnerProduct returns the inner product of two vectors.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 - cos(a, b). A zero vector on either side has distance 1.
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, L2Norm(a), b, L2Norm(b))
}

func cosineDistance(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - InnerProduct(a, b)/(normA*normB)
}
