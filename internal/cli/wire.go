package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"petmatch/config"
	"petmatch/internal/adapter/analyzer"
	"petmatch/internal/adapter/cache"
	"petmatch/internal/adapter/encoder"
	"petmatch/internal/adapter/memstore"
	"petmatch/internal/adapter/qdrant"
	"petmatch/internal/adapter/sqlstore"
	"petmatch/internal/adapter/store"
	"petmatch/internal/observability"
	"petmatch/internal/port"
	"petmatch/internal/usecase"
)

// app holds the wired components of one process.
type app struct {
	cfg     *config.Config
	store   port.AnimalStore
	index   port.VectorIndex
	indexer *usecase.IndexUseCase
	similar *usecase.SimilarUseCase
	tracer  *observability.TracerProvider
	logger  *slog.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger) (*app, error) {
	tracer, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	st, err := sqlstore.Open(cfg.Database.Driver, cfg.ResolveDSN(), sqlstore.Options{
		Table:            cfg.Database.Table,
		SoftDeleteColumn: cfg.Database.SoftDeleteColumn,
	})
	if err != nil {
		tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open animal store: %w", err)
	}

	index, err := newVectorIndex(ctx, cfg.Vector, cfg.Encoder.Dimension, dir)
	if err != nil {
		st.Close()
		tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	enc := encoder.NewTFIDF(analyzer.NewTokenizer(cfg.Encoder.Stopwords), cfg.Encoder.Dimension)

	var results usecase.ResultCache
	if cfg.Cache.Enabled {
		results = cache.NewSimilarCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}

	return &app{
		cfg:   cfg,
		store: st,
		index: index,
		indexer: usecase.NewIndexUseCase(st, enc, index, usecase.IndexOptions{
			BatchSize: cfg.Vector.BatchSize,
			Logger:    logger,
		}),
		similar: usecase.NewSimilarUseCase(st, index, usecase.SimilarOptions{
			DefaultK:    cfg.Similar.K,
			ExcludeSelf: cfg.Similar.ExcludeSelf,
			Search:      port.SearchParams{EF: cfg.Vector.EF},
			Cache:       results,
			Logger:      logger,
		}),
		tracer: tracer,
		logger: logger,
	}, nil
}

// recommender wraps the use cases for a long-running process.
func (a *app) recommender() *usecase.Recommender {
	return usecase.NewRecommender(a.indexer, a.similar, a.logger)
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(
		a.index.Close(),
		a.store.Close(),
		a.tracer.Shutdown(ctx),
	)
}

func newVectorIndex(ctx context.Context, vc config.VectorConfig, dimension int, dir string) (port.VectorIndex, error) {
	metric, ok := port.ParseMetric(vc.Metric)
	if !ok {
		return nil, fmt.Errorf("unsupported metric %q", vc.Metric)
	}

	switch vc.Backend {
	case "qdrant":
		return qdrant.New(ctx, vc.Host, vc.Port, vc.Collection, dimension, metric)
	case "bolt":
		path := vc.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		return store.OpenBoltVectorIndex(path, dimension, metric)
	case "memory":
		return memstore.NewMemoryIndex(dimension, metric), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend %q", vc.Backend)
	}
}
