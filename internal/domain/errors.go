package domain

import "errors"

var (
	// ErrAnimalNotFound means the queried id is absent from the row store.
	ErrAnimalNotFound = errors.New("animal not found")

	// ErrIndexMissing means the animal exists in the row store but has no
	// position in the in-memory index, i.e. the index is stale.
	ErrIndexMissing = errors.New("index not found for the given animal id")

	// ErrEncoderNotFit is returned by Transform before the encoder was fit.
	ErrEncoderNotFit = errors.New("encoder is not fit")

	// ErrAlreadyFit is returned by FitTransform on a fitted encoder.
	ErrAlreadyFit = errors.New("encoder is already fit")

	// ErrEmptyVocabulary means the fit corpus yielded no terms.
	ErrEmptyVocabulary = errors.New("empty vocabulary")

	// ErrDimensionMismatch means encoder output and vector index disagree on width.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
