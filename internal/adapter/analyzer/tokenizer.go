package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits feature text into lowercase terms. A term is a run of
// letters, digits or underscores at least minLen runes long.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a Tokenizer. When useStopwords is set, common English
// stopwords are dropped.
func NewTokenizer(useStopwords bool) *Tokenizer {
	t := &Tokenizer{minLen: 2}
	if useStopwords {
		t.stopwords = defaultStopwords()
	}
	return t
}

// Tokenize splits text into terms, preserving order and duplicates.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		if utf8.RuneCountInString(word) < t.minLen {
			continue
		}
		word = strings.ToLower(word)
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// splitWords splits text on every rune that is not a letter, digit or underscore.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"no", "not", "or", "but", "if",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
