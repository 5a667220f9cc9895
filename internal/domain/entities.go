package domain

import "strings"

// Animal is one shelter-animal record as read from the row store.
type Animal struct {
	ID          int64
	ShelterID   string
	Age         string
	Color       string
	Gender      string
	Kind        string
	Region      string
	SpecialMark string
	HappenPlace string
}

// FeatureText joins the descriptive fields in their fixed order, separated by single spaces.
func (a Animal) FeatureText() string {
	return strings.Join([]string{
		a.ShelterID,
		a.Age,
		a.Color,
		a.Gender,
		a.Kind,
		a.Region,
		a.SpecialMark,
		a.HappenPlace,
	}, " ")
}

// FeatureTexts builds the feature text of every animal, preserving order.
func FeatureTexts(animals []Animal) []string {
	texts := make([]string, len(animals))
	for i, a := range animals {
		texts[i] = a.FeatureText()
	}
	return texts
}

// IndexEntry is an (id, vector) pair mirrored into the vector index.
type IndexEntry struct {
	ID     int64
	Vector []float32
}

// Neighbor is one ranked result of a nearest-neighbor search.
type Neighbor struct {
	ID    int64
	Score float32
}

// IndexState is the in-memory half of the index: the feature matrix and the
// mapping from animal id to matrix row. The matrix is append-only and
// positions are never reused.
type IndexState struct {
	Matrix    [][]float32
	Positions map[int64]int
}

// NewIndexState returns an empty state.
func NewIndexState() *IndexState {
	return &IndexState{Positions: make(map[int64]int)}
}

// Len returns the number of indexed rows.
func (s *IndexState) Len() int {
	return len(s.Matrix)
}

// Vector returns the feature vector of an indexed animal.
func (s *IndexState) Vector(id int64) ([]float32, bool) {
	idx, ok := s.Positions[id]
	if !ok || idx < 0 || idx >= len(s.Matrix) {
		return nil, false
	}
	return s.Matrix[idx], true
}

// Contains reports whether id has a matrix position.
func (s *IndexState) Contains(id int64) bool {
	_, ok := s.Positions[id]
	return ok
}

// IDs returns the indexed ids ordered by matrix position.
func (s *IndexState) IDs() []int64 {
	ids := make([]int64, len(s.Matrix))
	for id, idx := range s.Positions {
		if idx >= 0 && idx < len(ids) {
			ids[idx] = id
		}
	}
	return ids
}

// Append adds rows at the end of the matrix and assigns them trailing positions.
// entries must not contain ids already present.
func (s *IndexState) Append(entries []IndexEntry) {
	base := len(s.Matrix)
	for i, e := range entries {
		s.Matrix = append(s.Matrix, e.Vector)
		s.Positions[e.ID] = base + i
	}
}

// UpdateResult describes the outcome of an incremental update.
type UpdateResult struct {
	Added   []int64
	Indexed int
}

// SimilarResult is the response of a similarity query.
type SimilarResult struct {
	AnimalID   int64   `json:"animal_id"`
	SimilarIDs []int64 `json:"similar_animal_ids"`
}
