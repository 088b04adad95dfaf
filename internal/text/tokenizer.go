// Package text provides the default tokenization collaborator for the
// conceptual-recurrence engine: word-level term counting and sentence
// splitting. Smarter NLP (lemmatization, stopword detection) can be
// substituted behind the Tokenizer interface.
package text

import (
	"strings"
	"unicode"
)

// Tokenizer converts raw utterance text into term occurrence counts.
type Tokenizer interface {
	// Tokenize returns a mapping of normalized terms to their occurrence
	// count within the text. An empty map is a valid result.
	Tokenize(text string) map[string]int
}

// WordTokenizer is the default Tokenizer: it scans Unicode letter/digit
// runs, lower-cases them, and counts occurrences. Punctuation and
// whitespace are separators; everything else is dropped.
type WordTokenizer struct {
	// MinLength drops terms shorter than this many runes (default: 1,
	// meaning nothing is dropped).
	MinLength int
}

// NewWordTokenizer returns a WordTokenizer with default settings.
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{MinLength: 1}
}

// Tokenize implements Tokenizer.
func (t *WordTokenizer) Tokenize(text string) map[string]int {
	counts := make(map[string]int)
	for _, term := range t.terms(text) {
		counts[term]++
	}
	return counts
}

// Terms returns the normalized terms of the text in appearance order,
// including repeats. The ordered form is used when first-seen position
// matters (deterministic frequency tie-breaking).
func (t *WordTokenizer) Terms(text string) []string {
	return t.terms(text)
}

func (t *WordTokenizer) terms(text string) []string {
	minLen := t.MinLength
	if minLen < 1 {
		minLen = 1
	}

	var terms []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		term := strings.ToLower(current.String())
		current.Reset()
		if len([]rune(term)) >= minLen {
			terms = append(terms, term)
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return terms
}
