package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"petmatch/internal/adapter/vecmath"
	"petmatch/internal/domain"
	"petmatch/internal/port"
)

// MemoryIndex is an in-process vector index with exact search.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	metric    port.Metric
	vectors   map[int64][]float32
}

func NewMemoryIndex(dimension int, metric port.Metric) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		metric:    metric,
		vectors:   make(map[int64][]float32),
	}
}

func (s *MemoryIndex) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(e.Vector))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		s.vectors[e.ID] = v
	}
	return nil
}

func (s *MemoryIndex) Search(ctx context.Context, query []float32, k int, _ port.SearchParams) ([]domain.Neighbor, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(query))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors := make([]domain.Neighbor, 0, len(s.vectors))
	for id, v := range s.vectors {
		neighbors = append(neighbors, domain.Neighbor{
			ID:    id,
			Score: vecmath.Score(s.metric, query, v),
		})
	}
	return vecmath.Rank(s.metric, neighbors, k), nil
}

func (s *MemoryIndex) Delete(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *MemoryIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = make(map[int64][]float32)
	return nil
}

func (s *MemoryIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// IDs returns the stored ids in ascending order.
func (s *MemoryIndex) IDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryIndex) Dimension() int {
	return s.dimension
}

func (s *MemoryIndex) Close() error {
	return nil
}

var (
	_ port.VectorIndex = (*MemoryIndex)(nil)
	_ port.IDLister    = (*MemoryIndex)(nil)
)
