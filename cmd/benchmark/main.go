package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"petmatch/config"
	"petmatch/internal/adapter/analyzer"
	"petmatch/internal/adapter/encoder"
	"petmatch/internal/adapter/memstore"
	"petmatch/internal/adapter/sqlstore"
	"petmatch/internal/adapter/vecmath"
	"petmatch/internal/domain"
	"petmatch/internal/port"
	"petmatch/internal/usecase"
)

// The benchmark always searches an in-memory index so it never rewrites the
// configured vector index.
func main() {
	dir := flag.String("dir", ".", "Directory holding petmatch.yaml")
	animalID := flag.Int64("id", 0, "Print the neighbours of this animal (0 = skip)")
	topK := flag.Int("k", 5, "Number of results")
	queries := flag.Int("n", 100, "Number of animals to query for latency")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := sqlstore.Open(cfg.Database.Driver, cfg.ResolveDSN(), sqlstore.Options{
		Table:            cfg.Database.Table,
		SoftDeleteColumn: cfg.Database.SoftDeleteColumn,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	metric, ok := port.ParseMetric(cfg.Vector.Metric)
	if !ok {
		metric = port.MetricL2
	}
	index := memstore.NewMemoryIndex(cfg.Encoder.Dimension, metric)
	enc := encoder.NewTFIDF(analyzer.NewTokenizer(cfg.Encoder.Stopwords), cfg.Encoder.Dimension)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	indexer := usecase.NewIndexUseCase(st, enc, index, usecase.IndexOptions{Logger: quiet})
	similar := usecase.NewSimilarUseCase(st, index, usecase.SimilarOptions{
		DefaultK:    cfg.Similar.K,
		ExcludeSelf: cfg.Similar.ExcludeSelf,
		Logger:      quiet,
	})

	ctx := context.Background()

	fmt.Println("SIMILARITY BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	start := time.Now()
	state, err := indexer.InitialLoad(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initial load failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Animals indexed: %d\n", state.Len())
	fmt.Printf("Vocabulary size: %d (dimension %d)\n", len(enc.Vocabulary()), enc.Dimension())
	fmt.Printf("Metric:          %s\n", metric)
	fmt.Printf("Load time:       %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Println()

	if *animalID != 0 {
		printNeighbours(ctx, st, similar, state, metric, *animalID, *topK)
	}

	ids := state.IDs()
	if *queries < len(ids) {
		ids = ids[:*queries]
	}
	if len(ids) == 0 {
		return
	}

	latencies := make([]time.Duration, 0, len(ids))
	selfHits := 0
	for _, id := range ids {
		t0 := time.Now()
		got, err := similar.GetSimilar(ctx, id, state, *topK)
		latencies = append(latencies, time.Since(t0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query %d failed: %v\n", id, err)
			continue
		}
		if len(got) > 0 && got[0] == id {
			selfHits++
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("LATENCY (%d queries, k=%d):\n", len(latencies), *topK)
	fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
	fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
	fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
	if !cfg.Similar.ExcludeSelf {
		fmt.Printf("SELF-MATCH RATE: %.1f%%\n", 100*float64(selfHits)/float64(len(ids)))
	}
}

func printNeighbours(ctx context.Context, st port.AnimalStore, similar *usecase.SimilarUseCase, state *domain.IndexState, metric port.Metric, id int64, k int) {
	query, err := st.FetchByID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		return
	}
	fmt.Printf("Query %d: %s\n", id, query.FeatureText())
	fmt.Println(strings.Repeat("-", 70))

	ids, err := similar.GetSimilar(ctx, id, state, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		return
	}
	queryVec, _ := state.Vector(id)
	for i, nid := range ids {
		a, err := st.FetchByID(ctx, nid)
		if err != nil {
			continue
		}
		vec, _ := state.Vector(nid)
		fmt.Printf("%d. [%s %.3f] %d: %s\n", i+1, metric, vecmath.Score(metric, queryVec, vec), nid, a.FeatureText())
	}
	fmt.Println()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
