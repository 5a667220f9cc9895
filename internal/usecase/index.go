package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"petmatch/internal/domain"
	"petmatch/internal/observability"
	"petmatch/internal/port"
)

// DefaultBatchSize is the number of vectors written per vector index insert.
const DefaultBatchSize = 256

// ProgressFunc reports batch insert progress as done out of total vectors.
type ProgressFunc func(done, total int)

// IndexOptions configures an IndexUseCase.
type IndexOptions struct {
	BatchSize int
	Logger    *slog.Logger
}

// IndexUseCase keeps the vector index and the in-memory index state in step
// with the row store.
type IndexUseCase struct {
	store     port.AnimalStore
	encoder   port.Encoder
	index     port.VectorIndex
	batchSize int
	logger    *slog.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	store port.AnimalStore,
	encoder port.Encoder,
	index port.VectorIndex,
	opts IndexOptions,
) *IndexUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &IndexUseCase{
		store:     store,
		encoder:   encoder,
		index:     index,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}
}

// InitialLoad fits the encoder on every row, rebuilds the vector index from
// scratch and returns the matching state. Positions follow fetch order.
// On failure the encoder is unfit and the vector index is empty.
func (u *IndexUseCase) InitialLoad(ctx context.Context, progress ProgressFunc) (state *domain.IndexState, err error) {
	ctx, span := observability.StartIndexSpan(ctx, "initial_load")
	defer func() {
		if err != nil {
			err = u.discard(ctx, err)
		}
		observability.RecordError(span, err)
		span.End()
	}()

	animals, err := u.store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch animals: %w", err)
	}

	if u.encoder.State() == port.EncoderFit {
		u.encoder.Reset()
	}
	vectors, err := u.encoder.FitTransform(domain.FeatureTexts(animals))
	if err != nil {
		return nil, fmt.Errorf("failed to fit encoder: %w", err)
	}
	if err := u.checkDimension(); err != nil {
		return nil, err
	}

	if err := u.index.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear vector index: %w", err)
	}

	entries := makeEntries(animals, vectors)
	if err := u.insertBatches(ctx, entries, progress); err != nil {
		return nil, err
	}

	state = domain.NewIndexState()
	state.Append(entries)

	observability.RecordIndexResult(span, len(animals), len(entries), state.Len())
	u.logger.Info("initial load complete",
		"rows", len(animals),
		"vocabulary_dim", u.encoder.Dimension(),
	)
	return state, nil
}

// discard empties the encoder and vector index after a failed initial load.
func (u *IndexUseCase) discard(ctx context.Context, cause error) error {
	if u.encoder.State() == port.EncoderFit {
		u.encoder.Reset()
	}
	if err := u.index.Clear(context.WithoutCancel(ctx)); err != nil {
		u.logger.Error("failed to clear vector index after failed load", "error", err)
		return errors.Join(cause, fmt.Errorf("failed to clear vector index: %w", err))
	}
	return cause
}

// IncrementalUpdate encodes rows that are not yet indexed and appends them to
// both the vector index and state. On any error state is left unchanged.
func (u *IndexUseCase) IncrementalUpdate(ctx context.Context, state *domain.IndexState) (result *domain.UpdateResult, err error) {
	ctx, span := observability.StartIndexSpan(ctx, "incremental_update")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	animals, err := u.store.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch animals: %w", err)
	}

	var fresh []domain.Animal
	for _, a := range animals {
		if !state.Contains(a.ID) {
			fresh = append(fresh, a)
		}
	}

	result = &domain.UpdateResult{Indexed: state.Len()}
	if len(fresh) == 0 {
		u.logger.Debug("no new animals to index", "indexed", state.Len())
		observability.RecordIndexResult(span, len(animals), 0, state.Len())
		return result, nil
	}

	vectors, err := u.encoder.Transform(domain.FeatureTexts(fresh))
	if err != nil {
		return nil, fmt.Errorf("failed to encode new animals: %w", err)
	}
	if err := u.checkDimension(); err != nil {
		return nil, err
	}

	entries := makeEntries(fresh, vectors)
	if err := u.insertBatches(ctx, entries, nil); err != nil {
		return nil, err
	}

	state.Append(entries)

	result.Indexed = state.Len()
	result.Added = make([]int64, len(entries))
	for i, e := range entries {
		result.Added[i] = e.ID
	}

	observability.RecordIndexResult(span, len(animals), len(entries), state.Len())
	u.logger.Info("indexed new animals",
		"added", len(entries),
		"indexed", state.Len(),
	)
	return result, nil
}

func (u *IndexUseCase) checkDimension() error {
	if u.encoder.Dimension() != u.index.Dimension() {
		return fmt.Errorf("%w: encoder produces %d, vector index expects %d",
			domain.ErrDimensionMismatch, u.encoder.Dimension(), u.index.Dimension())
	}
	return nil
}

// insertBatches writes entries in batches. If a batch fails, every id attempted
// so far is deleted again before the error is returned.
func (u *IndexUseCase) insertBatches(ctx context.Context, entries []domain.IndexEntry, progress ProgressFunc) error {
	total := len(entries)
	for start := 0; start < total; start += u.batchSize {
		end := min(start+u.batchSize, total)
		if err := u.index.Insert(ctx, entries[start:end]); err != nil {
			insertErr := fmt.Errorf("failed to insert vectors: %w", err)
			if rbErr := u.rollback(ctx, entries[:end]); rbErr != nil {
				u.logger.Warn("vector index rollback failed", "ids", end, "error", rbErr)
				return errors.Join(insertErr, rbErr)
			}
			return insertErr
		}
		if progress != nil {
			progress(end, total)
		}
	}
	return nil
}

func (u *IndexUseCase) rollback(ctx context.Context, attempted []domain.IndexEntry) error {
	ids := make([]int64, len(attempted))
	for i, e := range attempted {
		ids[i] = e.ID
	}
	// The caller's context may already be cancelled.
	if err := u.index.Delete(context.WithoutCancel(ctx), ids); err != nil {
		return fmt.Errorf("failed to roll back inserted vectors: %w", err)
	}
	return nil
}

func makeEntries(animals []domain.Animal, vectors [][]float32) []domain.IndexEntry {
	entries := make([]domain.IndexEntry, len(animals))
	for i, a := range animals {
		entries[i] = domain.IndexEntry{ID: a.ID, Vector: vectors[i]}
	}
	return entries
}
