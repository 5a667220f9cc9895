// Package vecmath holds the brute-force scoring shared by the embedded vector indexes.
package vecmath

import (
	"math"
	"sort"

	"petmatch/internal/domain"
	"petmatch/internal/port"
)

// Score computes the metric between a and b. For MetricL2 it is the
// Euclidean distance (lower is closer); for cosine and dot it is the
// similarity (higher is closer).
func Score(metric port.Metric, a, b []float32) float32 {
	switch metric {
	case port.MetricCosine:
		return float32(cosine(a, b))
	case port.MetricDot:
		return float32(dot(a, b))
	default:
		return float32(math.Sqrt(squaredL2(a, b)))
	}
}

// Closer reports whether score a ranks ahead of score b under metric.
func Closer(metric port.Metric, a, b float32) bool {
	if metric == port.MetricL2 || metric == "" {
		return a < b
	}
	return a > b
}

// Rank sorts neighbors best first, breaking ties by ascending id, and keeps at most k.
func Rank(metric port.Metric, neighbors []domain.Neighbor, k int) []domain.Neighbor {
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return Closer(metric, neighbors[i].Score, neighbors[j].Score)
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	if k >= 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosine(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
