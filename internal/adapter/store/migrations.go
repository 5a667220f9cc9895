package store

import (
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"
	"petmatch/internal/domain"
)

// CurrentSchemaVersion is the current on-disk format of the vector index.
// Increment this when making breaking changes to the storage format.
//
//	v1: values are packed little-endian float32
const CurrentSchemaVersion = 1

var keySchemaVersion = []byte("schema_version")

// SchemaInfo is the format and shape recorded in the meta bucket.
type SchemaInfo struct {
	Version   int
	Dimension int
}

func readSchemaInfo(tx *bbolt.Tx) (SchemaInfo, error) {
	var info SchemaInfo
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return info, nil
	}

	var err error
	if raw := meta.Get(keySchemaVersion); raw != nil {
		if info.Version, err = strconv.Atoi(string(raw)); err != nil {
			return info, fmt.Errorf("corrupt schema version %q: %w", raw, err)
		}
	}
	if raw := meta.Get(keyDimension); raw != nil {
		if info.Dimension, err = strconv.Atoi(string(raw)); err != nil {
			return info, fmt.Errorf("corrupt dimension %q: %w", raw, err)
		}
	}
	return info, nil
}

func writeSchemaInfo(tx *bbolt.Tx, info SchemaInfo) error {
	meta := tx.Bucket(bucketMeta)
	if err := meta.Put(keySchemaVersion, []byte(strconv.Itoa(info.Version))); err != nil {
		return err
	}
	return meta.Put(keyDimension, []byte(strconv.Itoa(info.Dimension)))
}

// migrate checks the recorded format against CurrentSchemaVersion and records
// dimension. Files from a newer version and non-empty indexes of another
// dimension are rejected.
func migrate(tx *bbolt.Tx, dimension int) error {
	info, err := readSchemaInfo(tx)
	if err != nil {
		return err
	}

	first, _ := tx.Bucket(bucketVectors).Cursor().First()
	empty := first == nil

	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("index created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
	}

	if !empty && info.Dimension != 0 && info.Dimension != dimension {
		return fmt.Errorf("%w: index holds %d, configured %d", domain.ErrDimensionMismatch, info.Dimension, dimension)
	}

	return writeSchemaInfo(tx, SchemaInfo{Version: CurrentSchemaVersion, Dimension: dimension})
}
