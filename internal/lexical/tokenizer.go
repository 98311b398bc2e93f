// Package lexical implements the keyword scoring leg: an in-memory
// inverted index over chunk text and a BM25-variant scorer whose IDF is
// clamped to a positive floor so common domain terms still contribute.
//
// The index publishes immutable snapshots through an atomic pointer.
// Queries score against whichever snapshot was current when they
// started; rebuilds never block readers.
package lexical

import (
	"strings"
	"unicode"
)

// minTokenLength drops single-character noise after splitting.
const minTokenLength = 2

// stopwords are excluded from both indexing and queries. The list is
// intentionally small; grant prose leans on words like "support" and
// "community" that general-purpose lists would throw away.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "will": {}, "with": {},
}

// Tokenize splits text into lowercase terms on any non-alphanumeric
// boundary, dropping stopwords and terms shorter than two characters.
// Numbers are kept; fiscal years and award amounts are real query terms.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minTokenLength {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TermFrequencies tokenizes text and counts occurrences per term.
func TermFrequencies(text string) map[string]int {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}
