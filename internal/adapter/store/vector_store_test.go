package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"go.etcd.io/bbolt"
	"petmatch/internal/domain"
	"petmatch/internal/port"
)

func TestBoltVectorIndex_InsertSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenBoltVectorIndex(filepath.Join(t.TempDir(), "vectors.db"), 2, port.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	err = idx.Insert(ctx, []domain.IndexEntry{
		{ID: 10, Vector: []float32{0, 0}},
		{ID: 20, Vector: []float32{1, 1}},
		{ID: 30, Vector: []float32{3, 3}},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := idx.Search(ctx, []float32{1, 0.9}, 2, port.SearchParams{EF: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 20 || got[1].ID != 10 {
		t.Errorf("Search() = %v, want ids [20 10]", got)
	}
}

func TestBoltVectorIndex_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	idx, err := OpenBoltVectorIndex(path, 2, port.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, []domain.IndexEntry{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenBoltVectorIndex(path, 2, port.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	ids, _ := reopened.IDs(ctx)
	if !reflect.DeepEqual(ids, []int64{1, 2}) {
		t.Errorf("IDs() after reopen = %v, want [1 2]", ids)
	}
}

func TestBoltVectorIndex_DimensionGuard(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	idx, err := OpenBoltVectorIndex(path, 2, port.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, []domain.IndexEntry{{ID: 1, Vector: []float32{1}}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("Insert err = %v, want ErrDimensionMismatch", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("failed insert must not be cached, count = %d", n)
	}
	_ = idx.Insert(ctx, []domain.IndexEntry{{ID: 1, Vector: []float32{1, 1}}})
	idx.Close()

	if _, err := OpenBoltVectorIndex(path, 3, port.MetricL2); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("reopen with other dimension: err = %v, want ErrDimensionMismatch", err)
	}
}

func TestBoltVectorIndex_DeleteClear(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenBoltVectorIndex(filepath.Join(t.TempDir(), "vectors.db"), 1, port.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	_ = idx.Insert(ctx, []domain.IndexEntry{
		{ID: 1, Vector: []float32{1}},
		{ID: 2, Vector: []float32{1}},
	})
	if err := idx.Delete(ctx, []int64{1}); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("Count() after delete = %d, want 1", n)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("Count() after clear = %d, want 0", n)
	}
	if err := idx.Insert(ctx, []domain.IndexEntry{{ID: 3, Vector: []float32{1}}}); err != nil {
		t.Errorf("Insert after clear: %v", err)
	}
}

func TestBoltVectorIndex_StampsSchemaInfo(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	idx, err := OpenBoltVectorIndex(path, 2, port.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(ctx, []domain.IndexEntry{{ID: 7, Vector: []float32{0.5, 0.25}}}); err != nil {
		t.Fatal(err)
	}
	idx.Close()

	idx, err = OpenBoltVectorIndex(path, 2, port.MetricL2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	var info SchemaInfo
	idx.db.View(func(tx *bbolt.Tx) error {
		info, err = readSchemaInfo(tx)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != 1 || info.Dimension != 2 {
		t.Errorf("schema info = %+v, want version 1 dimension 2", info)
	}

	got, err := idx.Search(ctx, []float32{0.5, 0.25}, 1, port.SearchParams{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 7 || got[0].Score != 0 {
		t.Errorf("Search() = %v, want exact match on id 7", got)
	}
}

func TestBoltVectorIndex_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucket(bucketVectors); err != nil {
			return err
		}
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		return meta.Put(keySchemaVersion, []byte("99"))
	})
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	if idx, err := OpenBoltVectorIndex(path, 2, port.MetricL2); err == nil {
		idx.Close()
		t.Fatal("expected error for a newer schema version")
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("decode(encode(%v)) = %v", in, out)
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated payload")
	}
}
