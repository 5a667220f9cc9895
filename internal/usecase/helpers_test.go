package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"petmatch/internal/adapter/analyzer"
	"petmatch/internal/adapter/encoder"
	"petmatch/internal/adapter/memstore"
	"petmatch/internal/domain"
	"petmatch/internal/port"
)

const testDim = 32

// fakeStore is an in-memory AnimalStore whose rows can change between calls.
type fakeStore struct {
	mu      sync.Mutex
	animals []domain.Animal
	fetches int
}

func newFakeStore(animals ...domain.Animal) *fakeStore {
	return &fakeStore{animals: animals}
}

func (s *fakeStore) add(animals ...domain.Animal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.animals = append(s.animals, animals...)
}

func (s *fakeStore) FetchAll(ctx context.Context) ([]domain.Animal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return append([]domain.Animal(nil), s.animals...), nil
}

func (s *fakeStore) FetchByID(ctx context.Context, id int64) (domain.Animal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.animals {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Animal{}, fmt.Errorf("animal %d: %w", id, domain.ErrAnimalNotFound)
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                   { return nil }

var errInsert = errors.New("vector index unavailable")

// flakyIndex fails the failOn-th Insert call (1-based); 0 never fails.
type flakyIndex struct {
	*memstore.MemoryIndex
	failOn int
	calls  int
}

func (f *flakyIndex) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	f.calls++
	if f.calls == f.failOn {
		// Write part of the batch first so rollback has something to remove.
		if len(entries) > 1 {
			_ = f.MemoryIndex.Insert(ctx, entries[:1])
		}
		return errInsert
	}
	return f.MemoryIndex.Insert(ctx, entries)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func animal(id int64, color, kind, region, mark string) domain.Animal {
	return domain.Animal{
		ID:          id,
		ShelterID:   fmt.Sprintf("3113002018%05d", id),
		Age:         "2023(년생)",
		Color:       color,
		Gender:      "M",
		Kind:        kind,
		Region:      region,
		SpecialMark: mark,
		HappenPlace: region + " 보호소",
	}
}

func seedAnimals() []domain.Animal {
	return []domain.Animal{
		animal(1, "갈색", "[개] 믹스견", "경기도 양주시", "온순함 겁이많음"),
		animal(2, "흰색", "[개] 진돗개", "서울특별시 강남구", "활발함"),
		animal(3, "검정색", "[고양이] 코리안숏헤어", "부산광역시 해운대구", "사람을 잘 따름"),
	}
}

type fixture struct {
	store   *fakeStore
	index   *memstore.MemoryIndex
	indexer *IndexUseCase
	similar *SimilarUseCase
}

func newFixture(t *testing.T, opts SimilarOptions, animals ...domain.Animal) *fixture {
	t.Helper()
	store := newFakeStore(animals...)
	index := memstore.NewMemoryIndex(testDim, port.MetricL2)
	enc := encoder.NewTFIDF(analyzer.NewTokenizer(false), testDim)
	opts.Logger = discardLogger()
	return &fixture{
		store:   store,
		index:   index,
		indexer: NewIndexUseCase(store, enc, index, IndexOptions{Logger: discardLogger()}),
		similar: NewSimilarUseCase(store, index, opts),
	}
}

func positionKeys(state *domain.IndexState) []int64 {
	keys := make([]int64, 0, len(state.Positions))
	for id := range state.Positions {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func indexIDs(t *testing.T, index port.IDLister) []int64 {
	t.Helper()
	ids, err := index.IDs(context.Background())
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	return ids
}
