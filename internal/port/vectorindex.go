package port

import (
	"context"

	"petmatch/internal/domain"
)

// Metric is a vector-index distance metric.
type Metric string

const (
	MetricL2     Metric = "l2"
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, bool) {
	switch m := Metric(name); m {
	case MetricL2, MetricCosine, MetricDot:
		return m, true
	default:
		return "", false
	}
}

// SearchParams tunes a nearest-neighbor search.
type SearchParams struct {
	// EF is the search-quality knob; 0 lets the backend choose.
	EF int
}

// VectorIndex stores fixed-dimension vectors keyed by integer id.
type VectorIndex interface {
	// Insert adds or overwrites entries.
	Insert(ctx context.Context, entries []domain.IndexEntry) error

	// Search returns up to k neighbors of query, best first.
	Search(ctx context.Context, query []float32, k int, params SearchParams) ([]domain.Neighbor, error)

	// Delete removes entries by id. Missing ids are ignored.
	Delete(ctx context.Context, ids []int64) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	Dimension() int

	Close() error
}

// IDLister is implemented by indexes that can enumerate their ids.
type IDLister interface {
	IDs(ctx context.Context) ([]int64, error)
}
