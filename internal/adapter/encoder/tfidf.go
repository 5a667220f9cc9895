// Package encoder turns animal feature text into TF-IDF vectors.
package encoder

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"petmatch/internal/domain"
	"petmatch/internal/port"
)

// TFIDF is a term-frequency / inverse-document-frequency encoder with a
// fixed output width. It is fit once; afterwards it only transforms, and
// terms unseen at fit time contribute nothing.
type TFIDF struct {
	mu        sync.RWMutex
	tokenizer port.Tokenizer
	dimension int
	state     port.EncoderState
	vocab     map[string]int
	idf       []float64
}

// NewTFIDF creates an unfit encoder. dimension is both the maximum
// vocabulary size and the width of every produced vector.
func NewTFIDF(tokenizer port.Tokenizer, dimension int) *TFIDF {
	return &TFIDF{
		tokenizer: tokenizer,
		dimension: dimension,
		state:     port.EncoderUnfit,
	}
}

// FitTransform builds the vocabulary and IDF weights from texts and returns
// a vector for each text.
func (e *TFIDF) FitTransform(texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == port.EncoderFit {
		return nil, domain.ErrAlreadyFit
	}
	if e.dimension <= 0 {
		return nil, fmt.Errorf("invalid encoder dimension %d", e.dimension)
	}

	docs := make([][]string, len(texts))
	df := make(map[string]int)
	total := make(map[string]int)
	for i, text := range texts {
		tokens := e.tokenizer.Tokenize(text)
		docs[i] = tokens

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			total[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}
	if len(df) == 0 {
		return nil, domain.ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) > e.dimension {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:e.dimension]
	}
	sort.Strings(terms)

	n := float64(len(texts))
	e.vocab = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	for i, term := range terms {
		e.vocab[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	e.state = port.EncoderFit

	vectors := make([][]float32, len(docs))
	for i, tokens := range docs {
		vectors[i] = e.encode(tokens)
	}
	return vectors, nil
}

// Transform encodes texts with the fitted vocabulary.
func (e *TFIDF) Transform(texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != port.EncoderFit {
		return nil, domain.ErrEncoderNotFit
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.encode(e.tokenizer.Tokenize(text))
	}
	return vectors, nil
}

// Reset discards the vocabulary so the encoder can be fit again.
func (e *TFIDF) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocab = nil
	e.idf = nil
	e.state = port.EncoderUnfit
}

func (e *TFIDF) State() port.EncoderState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *TFIDF) Dimension() int {
	return e.dimension
}

// Vocabulary returns the fitted terms in column order.
func (e *TFIDF) Vocabulary() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	terms := make([]string, len(e.vocab))
	for term, idx := range e.vocab {
		terms[idx] = term
	}
	return terms
}

// encode weights raw term counts by IDF and L2-normalizes the row.
// Callers hold e.mu.
func (e *TFIDF) encode(tokens []string) []float32 {
	weights := make([]float64, e.dimension)
	for _, tok := range tokens {
		if idx, ok := e.vocab[tok]; ok {
			weights[idx]++
		}
	}

	var norm float64
	for idx, count := range weights {
		if count == 0 {
			continue
		}
		w := count * e.idf[idx]
		weights[idx] = w
		norm += w * w
	}

	vector := make([]float32, e.dimension)
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for idx, w := range weights {
		vector[idx] = float32(w / norm)
	}
	return vector
}

var _ port.Encoder = (*TFIDF)(nil)
