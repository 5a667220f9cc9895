package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"petmatch/internal/domain"
)

// Recommender owns the index state of a long-running process. Updates take
// the write lock; queries share the read lock.
type Recommender struct {
	mu      sync.RWMutex
	state   *domain.IndexState
	loaded  bool
	indexer *IndexUseCase
	similar *SimilarUseCase
	logger  *slog.Logger
}

// NewRecommender creates a recommender with an empty state.
func NewRecommender(indexer *IndexUseCase, similar *SimilarUseCase, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{
		state:   domain.NewIndexState(),
		indexer: indexer,
		similar: similar,
		logger:  logger,
	}
}

// Load replaces the state with a fresh initial load. A failed load leaves
// the state empty, matching the vector index InitialLoad leaves behind, and
// the next Refresh retries the full load.
func (r *Recommender) Load(ctx context.Context, progress ProgressFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, progress)
}

func (r *Recommender) load(ctx context.Context, progress ProgressFunc) error {
	defer r.similar.invalidate()

	state, err := r.indexer.InitialLoad(ctx, progress)
	if err != nil {
		r.state = domain.NewIndexState()
		r.loaded = false
		return err
	}
	r.state = state
	r.loaded = true
	return nil
}

// Refresh indexes rows added since the last load or refresh. After a failed
// load it runs a full load instead.
func (r *Recommender) Refresh(ctx context.Context) (*domain.UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		if err := r.load(ctx, nil); err != nil {
			return nil, err
		}
		return &domain.UpdateResult{Added: r.state.IDs(), Indexed: r.state.Len()}, nil
	}

	result, err := r.indexer.IncrementalUpdate(ctx, r.state)
	if err != nil {
		return nil, err
	}
	if len(result.Added) > 0 {
		r.similar.invalidate()
	}
	return result, nil
}

// Similar returns up to k ids most similar to animalID.
func (r *Recommender) Similar(ctx context.Context, animalID int64, k int) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.similar.GetSimilar(ctx, animalID, r.state, k)
}

// Indexed returns the number of animals in the state.
func (r *Recommender) Indexed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Len()
}

// Run refreshes every interval until ctx is done. A failed refresh is logged
// and retried on the next tick. A non-positive interval disables the loop.
func (r *Recommender) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := r.Refresh(ctx)
			if err != nil {
				r.logger.Error("periodic refresh failed", "error", err)
				continue
			}
			if len(result.Added) > 0 {
				r.logger.Info("periodic refresh", "added", len(result.Added), "indexed", result.Indexed)
			}
		}
	}
}
