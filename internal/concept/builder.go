// Package concept converts utterances into weighted vectors over the
// key-term concept basis. Raw term frequencies are redistributed through
// a term-term co-occurrence similarity matrix, so an utterance using a
// near-synonym of a key term still contributes partial weight to it.
// This redistribution is what separates conceptual recurrence from exact
// lexical overlap.
package concept

import (
	"fmt"
	"math"

	"github.com/lexfield/echomap/pkg/types"
)

// Builder produces term-term similarity matrices and per-utterance
// concept vectors for a fixed sentence-window configuration.
type Builder struct {
	sentenceWindow int
	split          func(text string) []string
	tokenize       types.TokenizeFunc
}

// NewBuilder creates a Builder. split segments utterance text into
// sentences and tokenize counts terms per sentence; both are collaborator
// functions (internal/text supplies the defaults).
func NewBuilder(sentenceWindow int, split func(string) []string, tokenize types.TokenizeFunc) (*Builder, error) {
	if sentenceWindow < 1 {
		return nil, fmt.Errorf("%w: sentence_window must be >= 1, got %d", types.ErrInvalidConfig, sentenceWindow)
	}
	if split == nil || tokenize == nil {
		return nil, fmt.Errorf("%w: sentence splitter and tokenizer are required", types.ErrInvalidConfig)
	}
	return &Builder{sentenceWindow: sentenceWindow, split: split, tokenize: tokenize}, nil
}

// TermSimilarity computes the |keyTerms| × |keyTerms| co-occurrence
// similarity matrix. Two key terms are similar in proportion to how often
// they occur within the same window of consecutive sentences, measured as
// the cosine between their per-window occurrence-count vectors aggregated
// across the whole conversation. Windows slide within each utterance and
// never span utterance boundaries: adjacency in the transcript alone must
// not make unrelated terms similar. The diagonal is 1 by definition;
// terms that never co-occur score 0.
func (b *Builder) TermSimilarity(conv *types.Conversation, keyTerms []string) *types.Matrix {
	k := len(keyTerms)
	sim := types.NewMatrix(k)
	for i := 0; i < k; i++ {
		sim.Set(i, i, 1.0)
	}
	if k == 0 || conv == nil {
		return sim
	}

	index := make(map[string]int, k)
	for i, term := range keyTerms {
		index[term] = i
	}

	// occurrences[t] is term t's count vector over windows, kept sparse.
	occurrences := make([]map[int]float64, k)
	for t := range occurrences {
		occurrences[t] = make(map[int]float64)
	}

	window := 0
	for _, u := range conv.Utterances {
		// Per-sentence key-term counts for this utterance.
		var sentences []map[int]int
		for _, sentence := range b.split(u.Text) {
			counts := make(map[int]int)
			for term, n := range b.tokenize(sentence) {
				if ti, ok := index[term]; ok {
					counts[ti] += n
				}
			}
			sentences = append(sentences, counts)
		}
		if len(sentences) == 0 {
			continue
		}

		// An utterance shorter than one window yields a single window
		// covering all of its sentences.
		numWindows := len(sentences) - b.sentenceWindow + 1
		if numWindows < 1 {
			numWindows = 1
		}

		for w := 0; w < numWindows; w++ {
			end := w + b.sentenceWindow
			if end > len(sentences) {
				end = len(sentences)
			}
			for s := w; s < end; s++ {
				for t, n := range sentences[s] {
					occurrences[t][window] += float64(n)
				}
			}
			window++
		}
	}

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			sim.SetSymmetric(i, j, sparseCosine(occurrences[i], occurrences[j]))
		}
	}

	return sim
}

// ConceptVectors builds one concept vector per utterance: the utterance's
// term-frequency row restricted to keyTerms, multiplied through the
// term-similarity matrix. An utterance with no key-term occurrences
// yields an all-zero vector, which is valid and propagates to zero
// similarity downstream.
func (b *Builder) ConceptVectors(conv *types.Conversation, keyTerms []string, termSim *types.Matrix) [][]float64 {
	k := len(keyTerms)
	index := make(map[string]int, k)
	for i, term := range keyTerms {
		index[term] = i
	}

	vectors := make([][]float64, conv.Len())
	for ui, u := range conv.Utterances {
		tf := make([]float64, k)
		for term, n := range u.TokenCounts {
			if ti, ok := index[term]; ok {
				tf[ti] = float64(n)
			}
		}

		vec := make([]float64, k)
		for t := 0; t < k; t++ {
			if tf[t] == 0 {
				continue
			}
			for j := 0; j < k; j++ {
				vec[j] += tf[t] * termSim.At(t, j)
			}
		}
		vectors[ui] = vec
	}

	return vectors
}

// sparseCosine computes the cosine between two sparse vectors. Zero-norm
// inputs yield 0, never NaN.
func sparseCosine(a, b map[int]float64) float64 {
	var dot, normA, normB float64
	for i, v := range a {
		normA += v * v
		if w, ok := b[i]; ok {
			dot += v * w
		}
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against floating drift above 1.
	if cos > 1 {
		cos = 1
	}
	if cos < 0 {
		cos = 0
	}
	return cos
}
