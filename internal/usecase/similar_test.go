package usecase

import (
	"context"
	"errors"
	"slices"
	"testing"

	"petmatch/internal/domain"
)

func loadedFixture(t *testing.T, opts SimilarOptions) (*fixture, *domain.IndexState) {
	t.Helper()
	f := newFixture(t, opts, seedAnimals()...)
	state, err := f.indexer.InitialLoad(context.Background(), nil)
	if err != nil {
		t.Fatalf("InitialLoad: %v", err)
	}
	return f, state
}

func TestGetSimilar_IncludesSelfFirst(t *testing.T) {
	f, state := loadedFixture(t, SimilarOptions{})

	ids, err := f.similar.GetSimilar(context.Background(), 1, state, 3)
	if err != nil {
		t.Fatalf("GetSimilar: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3: %v", len(ids), ids)
	}
	if ids[0] != 1 {
		t.Errorf("nearest neighbour = %d, want the query animal itself", ids[0])
	}
}

func TestGetSimilar_ExcludeSelf(t *testing.T) {
	f, state := loadedFixture(t, SimilarOptions{ExcludeSelf: true})

	ids, err := f.similar.GetSimilar(context.Background(), 1, state, 2)
	if err != nil {
		t.Fatalf("GetSimilar: %v", err)
	}
	if slices.Contains(ids, 1) {
		t.Errorf("result %v contains the query animal", ids)
	}
	if len(ids) != 2 {
		t.Errorf("got %d ids, want 2: %v", len(ids), ids)
	}
}

func TestGetSimilar_DefaultK(t *testing.T) {
	f, state := loadedFixture(t, SimilarOptions{})

	for _, k := range []int{0, -1} {
		ids, err := f.similar.GetSimilar(context.Background(), 2, state, k)
		if err != nil {
			t.Fatalf("GetSimilar(k=%d): %v", k, err)
		}
		// default of 5 is capped by the three indexed animals
		if len(ids) != 3 {
			t.Errorf("k=%d: got %d ids, want 3", k, len(ids))
		}
	}
}

func TestGetSimilar_AnimalNotFound(t *testing.T) {
	f, state := loadedFixture(t, SimilarOptions{})

	_, err := f.similar.GetSimilar(context.Background(), 99, state, 5)
	if !errors.Is(err, domain.ErrAnimalNotFound) {
		t.Fatalf("err = %v, want ErrAnimalNotFound", err)
	}
	if errors.Is(err, domain.ErrIndexMissing) {
		t.Error("not-found must be distinguishable from index-missing")
	}
}

func TestGetSimilar_IndexMissing(t *testing.T) {
	f := newFixture(t, SimilarOptions{}, seedAnimals()[:2]...)
	ctx := context.Background()

	state, err := f.indexer.InitialLoad(ctx, nil)
	if err != nil {
		t.Fatalf("InitialLoad: %v", err)
	}
	// row 3 exists in the store but has not been indexed yet
	f.store.add(seedAnimals()[2])

	_, err = f.similar.GetSimilar(ctx, 3, state, 5)
	if !errors.Is(err, domain.ErrIndexMissing) {
		t.Fatalf("err = %v, want ErrIndexMissing", err)
	}
	if errors.Is(err, domain.ErrAnimalNotFound) {
		t.Error("index-missing must be distinguishable from not-found")
	}
}
