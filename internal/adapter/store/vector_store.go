package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"petmatch/internal/adapter/vecmath"
	"petmatch/internal/domain"
	"petmatch/internal/port"
)

var (
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
	keyDimension  = []byte("dimension")
)

// BoltVectorIndex implements VectorIndex on BoltDB. Vectors are mirrored
// in memory and searched by brute force.
type BoltVectorIndex struct {
	db        *bbolt.DB
	ownsDB    bool
	dimension int
	metric    port.Metric
	mu        sync.RWMutex
	vectors   map[int64][]float32
}

// OpenBoltVectorIndex opens (or creates) a BoltDB file dedicated to the index.
func OpenBoltVectorIndex(path string, dimension int, metric port.Metric) (*BoltVectorIndex, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	idx, err := NewBoltVectorIndex(db, dimension, metric)
	if err != nil {
		db.Close()
		return nil, err
	}
	idx.ownsDB = true
	return idx, nil
}

// NewBoltVectorIndex creates a vector index inside an existing BoltDB handle.
func NewBoltVectorIndex(db *bbolt.DB, dimension int, metric port.Metric) (*BoltVectorIndex, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		return migrate(tx, dimension)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare vector index: %w", err)
	}

	idx := &BoltVectorIndex{
		db:        db,
		dimension: dimension,
		metric:    metric,
		vectors:   make(map[int64][]float32),
	}

	if err := idx.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return idx, nil
}

func idKey(id int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
}

func keyID(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k))
}

// encodeVector stores a vector as little-endian float32 words.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes is not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}

// loadVectors loads all vectors from BoltDB into memory.
func (s *BoltVectorIndex) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			vec, err := decodeVector(v)
			if err != nil || len(vec) != s.dimension {
				return nil // Skip corrupted entries
			}
			s.vectors[keyID(k)] = vec
			return nil
		})
	})
}

func (s *BoltVectorIndex) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, e := range entries {
			if len(e.Vector) != s.dimension {
				return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(e.Vector))
			}

			if err := b.Put(idKey(e.ID), encodeVector(e.Vector)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The bolt transaction is atomic, so the cache is updated only after commit.
	for _, e := range entries {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		s.vectors[e.ID] = v
	}
	return nil
}

func (s *BoltVectorIndex) Search(ctx context.Context, query []float32, k int, _ port.SearchParams) ([]domain.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(query))
	}

	if len(s.vectors) == 0 {
		return nil, nil
	}

	neighbors := make([]domain.Neighbor, 0, len(s.vectors))
	for id, v := range s.vectors {
		neighbors = append(neighbors, domain.Neighbor{
			ID:    id,
			Score: vecmath.Score(s.metric, query, v),
		})
	}
	return vecmath.Rank(s.metric, neighbors, k), nil
}

func (s *BoltVectorIndex) Delete(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete(idKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

func (s *BoltVectorIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketVectors) != nil {
			if err := tx.DeleteBucket(bucketVectors); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketVectors)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	s.vectors = make(map[int64][]float32)
	return nil
}

func (s *BoltVectorIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// IDs returns the stored ids in ascending order.
func (s *BoltVectorIndex) IDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *BoltVectorIndex) Dimension() int {
	return s.dimension
}

func (s *BoltVectorIndex) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

var (
	_ port.VectorIndex = (*BoltVectorIndex)(nil)
	_ port.IDLister    = (*BoltVectorIndex)(nil)
)
