// Package catalog maintains the term vocabulary of a conversation: per-term
// document frequencies, the mutable stopword set, and the top-K key terms
// that form the concept basis for similarity analysis.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/lexfield/echomap/pkg/types"
)

// TermCount pairs a term with its document frequency (the number of
// utterances the term appears in).
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// TermCatalog holds the vocabulary derived from a conversation. The
// stopword set is the one piece of mutable state; every mutation bumps
// the version counter so derived caches can detect staleness.
type TermCatalog struct {
	mu        sync.RWMutex
	docFreq   map[string]int
	firstSeen map[string]int
	stopwords map[string]struct{}
	version   uint64
}

// Build constructs a TermCatalog from the conversation's cached token
// counts. Document frequency counts utterances, not occurrences: a term
// used five times in one utterance has document frequency 1.
//
// First-seen ordinals (used for deterministic frequency tie-breaking)
// are assigned walking utterances in conversation order; within one
// utterance, new terms are ranked lexicographically since token count
// maps carry no position information.
func Build(conv *types.Conversation) *TermCatalog {
	c := &TermCatalog{
		docFreq:   make(map[string]int),
		firstSeen: make(map[string]int),
		stopwords: make(map[string]struct{}),
	}
	if conv == nil {
		return c
	}

	next := 0
	for _, u := range conv.Utterances {
		newTerms := make([]string, 0, len(u.TokenCounts))
		for term := range u.TokenCounts {
			c.docFreq[term]++
			if _, ok := c.firstSeen[term]; !ok {
				newTerms = append(newTerms, term)
			}
		}
		sort.Strings(newTerms)
		for _, term := range newTerms {
			c.firstSeen[term] = next
			next++
		}
	}

	return c
}

// AddStopword adds a term to the stopword set. The term is trimmed and
// lower-cased first. Adding a term that is already a stopword is a no-op
// and does not bump the version, so repeated additions cannot trigger
// redundant recomputation.
func (c *TermCatalog) AddStopword(term string) {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if normalized == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.stopwords[normalized]; ok {
		return
	}
	c.stopwords[normalized] = struct{}{}
	c.version++
}

// AddStopwords adds every term in the list; see AddStopword.
func (c *TermCatalog) AddStopwords(terms []string) {
	for _, term := range terms {
		c.AddStopword(term)
	}
}

// IsStopword reports whether the term is currently a stopword.
func (c *TermCatalog) IsStopword(term string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.stopwords[strings.ToLower(strings.TrimSpace(term))]
	return ok
}

// Stopwords returns the current stopword set, sorted.
func (c *TermCatalog) Stopwords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	words := make([]string, 0, len(c.stopwords))
	for w := range c.stopwords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Version returns the stopword-set version. Derived artifacts record the
// version they were built against and recompute when it has moved on.
func (c *TermCatalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// VocabularySize returns the number of distinct terms observed,
// regardless of stopword status.
func (c *TermCatalog) VocabularySize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docFreq)
}

// MostCommonTerms returns the top-n non-stopword terms by document
// frequency. Frequency ties break by first appearance in the
// conversation, which keeps the result deterministic across runs.
// n larger than the (non-stopword) vocabulary is clamped.
func (c *TermCatalog) MostCommonTerms(n int) []TermCount {
	if n < 1 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ranked := c.rankedLocked()
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// KeyTerms returns the top-k non-stopword terms, in frequency order.
// An empty catalog yields an empty sequence, not an error.
func (c *TermCatalog) KeyTerms(k int) []string {
	counts := c.MostCommonTerms(k)
	terms := make([]string, len(counts))
	for i, tc := range counts {
		terms[i] = tc.Term
	}
	return terms
}

// TermFrequencies returns the full frequency table, including stopwords,
// ordered by descending frequency then lexicographic term.
func (c *TermCatalog) TermFrequencies() []TermCount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table := make([]TermCount, 0, len(c.docFreq))
	for term, count := range c.docFreq {
		table = append(table, TermCount{Term: term, Count: count})
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].Count != table[j].Count {
			return table[i].Count > table[j].Count
		}
		return table[i].Term < table[j].Term
	})
	return table
}

// rankedLocked returns non-stopword terms ordered by descending document
// frequency, ties broken by first-seen ordinal. Callers must hold mu.
func (c *TermCatalog) rankedLocked() []TermCount {
	ranked := make([]TermCount, 0, len(c.docFreq))
	for term, count := range c.docFreq {
		if _, stop := c.stopwords[term]; stop {
			continue
		}
		ranked = append(ranked, TermCount{Term: term, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return c.firstSeen[ranked[i].Term] < c.firstSeen[ranked[j].Term]
	})
	return ranked
}
