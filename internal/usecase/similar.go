package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"petmatch/internal/domain"
	"petmatch/internal/observability"
	"petmatch/internal/port"
)

// DefaultK is the neighbour count used when a query asks for k <= 0.
const DefaultK = 5

// ResultCache memoises similarity results until the index changes.
type ResultCache interface {
	Get(animalID int64, k int) ([]int64, bool)
	Put(animalID int64, k int, ids []int64)
	Invalidate()
}

// SimilarOptions configures a SimilarUseCase. Cache may be nil.
type SimilarOptions struct {
	DefaultK    int
	ExcludeSelf bool
	Search      port.SearchParams
	Cache       ResultCache
	Logger      *slog.Logger
}

// SimilarUseCase answers "which animals are most like this one".
type SimilarUseCase struct {
	store       port.AnimalStore
	index       port.VectorIndex
	defaultK    int
	excludeSelf bool
	search      port.SearchParams
	cache       ResultCache
	logger      *slog.Logger
}

// NewSimilarUseCase creates a new similarity use case.
func NewSimilarUseCase(store port.AnimalStore, index port.VectorIndex, opts SimilarOptions) *SimilarUseCase {
	if opts.DefaultK <= 0 {
		opts.DefaultK = DefaultK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SimilarUseCase{
		store:       store,
		index:       index,
		defaultK:    opts.DefaultK,
		excludeSelf: opts.ExcludeSelf,
		search:      opts.Search,
		cache:       opts.Cache,
		logger:      opts.Logger,
	}
}

// GetSimilar returns the ids of the k nearest animals to animalID, best first.
// It fails with domain.ErrAnimalNotFound when the row store has no such
// animal and with domain.ErrIndexMissing when the animal is not indexed yet.
// Both checks run before the result cache is consulted.
func (u *SimilarUseCase) GetSimilar(ctx context.Context, animalID int64, state *domain.IndexState, k int) (ids []int64, err error) {
	if k <= 0 {
		k = u.defaultK
	}

	ctx, span := observability.StartSimilarSpan(ctx, animalID, k)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	if _, err := u.store.FetchByID(ctx, animalID); err != nil {
		return nil, fmt.Errorf("failed to look up animal %d: %w", animalID, err)
	}

	query, ok := state.Vector(animalID)
	if !ok {
		return nil, fmt.Errorf("animal %d: %w", animalID, domain.ErrIndexMissing)
	}

	if u.cache != nil {
		if cached, ok := u.cache.Get(animalID, k); ok {
			return cached, nil
		}
	}

	limit := k
	if u.excludeSelf {
		limit++
	}

	neighbors, err := u.index.Search(ctx, query, limit, u.search)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	ids = make([]int64, 0, k)
	for _, n := range neighbors {
		if u.excludeSelf && n.ID == animalID {
			continue
		}
		if len(ids) == k {
			break
		}
		ids = append(ids, n.ID)
	}

	if u.cache != nil {
		u.cache.Put(animalID, k, ids)
	}

	u.logger.Debug("similar animals", "animal_id", animalID, "k", k, "found", len(ids))
	return ids, nil
}

func (u *SimilarUseCase) invalidate() {
	if u.cache != nil {
		u.cache.Invalidate()
	}
}
