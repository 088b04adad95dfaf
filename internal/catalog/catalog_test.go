package catalog

import (
	"reflect"
	"testing"

	"github.com/lexfield/echomap/pkg/types"
)

func buildConversation(t *testing.T, texts ...string) *types.Conversation {
	t.Helper()
	rows := make([]types.Row, len(texts))
	for i, text := range texts {
		rows[i] = types.Row{Speaker: "s", Text: text}
	}
	conv, err := types.NewConversation(rows, func(text string) map[string]int {
		counts := make(map[string]int)
		start := -1
		for i, r := range text {
			if r == ' ' {
				if start >= 0 {
					counts[text[start:i]]++
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			counts[text[start:]]++
		}
		return counts
	})
	if err != nil {
		t.Fatalf("NewConversation returned error: %v", err)
	}
	return conv
}

func TestBuild_DocumentFrequencyCountsUtterances(t *testing.T) {
	conv := buildConversation(t, "cat cat cat", "cat dog", "dog")
	c := Build(conv)

	freqs := c.TermFrequencies()
	expected := []TermCount{{Term: "cat", Count: 2}, {Term: "dog", Count: 2}}
	if !reflect.DeepEqual(freqs, expected) {
		t.Errorf("expected %v, got %v", expected, freqs)
	}
}

func TestMostCommonTerms_ExcludesStopwords(t *testing.T) {
	conv := buildConversation(t, "the cat", "the dog", "the bird")
	c := Build(conv)

	top := c.MostCommonTerms(1)
	if len(top) != 1 || top[0].Term != "the" {
		t.Fatalf("expected 'the' as most common, got %v", top)
	}

	c.AddStopword("THE ")
	top = c.MostCommonTerms(3)
	for _, tc := range top {
		if tc.Term == "the" {
			t.Error("stopword should be excluded from most common terms")
		}
	}
	if len(top) != 3 {
		t.Errorf("expected 3 remaining terms, got %d", len(top))
	}
}

func TestAddStopword_Idempotent(t *testing.T) {
	conv := buildConversation(t, "the cat sat", "the dog ran")
	c := Build(conv)

	c.AddStopword("the")
	v1 := c.Version()
	first := c.MostCommonTerms(10)

	c.AddStopword("the")
	if c.Version() != v1 {
		t.Error("re-adding an existing stopword must not bump the version")
	}
	second := c.MostCommonTerms(10)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("idempotent stopword add changed output: %v vs %v", first, second)
	}
}

func TestAddStopword_BumpsVersion(t *testing.T) {
	c := Build(buildConversation(t, "a b"))
	if c.Version() != 0 {
		t.Fatalf("fresh catalog should have version 0, got %d", c.Version())
	}
	c.AddStopword("a")
	if c.Version() != 1 {
		t.Errorf("expected version 1 after first stopword, got %d", c.Version())
	}
	c.AddStopword("")
	if c.Version() != 1 {
		t.Errorf("blank stopword should be ignored, got version %d", c.Version())
	}
}

func TestKeyTerms_TieBreakByFirstSeen(t *testing.T) {
	// zebra appears before apple in conversation order; both have
	// document frequency 1, so zebra must rank first.
	conv := buildConversation(t, "zebra", "apple")
	c := Build(conv)

	terms := c.KeyTerms(2)
	if !reflect.DeepEqual(terms, []string{"zebra", "apple"}) {
		t.Errorf("expected first-seen tie-break, got %v", terms)
	}
}

func TestKeyTerms_ClampsToVocabulary(t *testing.T) {
	conv := buildConversation(t, "only two")
	c := Build(conv)

	terms := c.KeyTerms(50)
	if len(terms) != 2 {
		t.Errorf("expected 2 terms, got %d", len(terms))
	}
}

func TestKeyTerms_EmptyCatalog(t *testing.T) {
	c := Build(nil)
	if terms := c.KeyTerms(10); len(terms) != 0 {
		t.Errorf("empty catalog should yield no key terms, got %v", terms)
	}
	if c.VocabularySize() != 0 {
		t.Errorf("expected empty vocabulary, got %d", c.VocabularySize())
	}
}

func TestTermFrequencies_StableOrdering(t *testing.T) {
	conv := buildConversation(t, "b a", "b a", "c")
	c := Build(conv)

	freqs := c.TermFrequencies()
	expected := []TermCount{
		{Term: "a", Count: 2},
		{Term: "b", Count: 2},
		{Term: "c", Count: 1},
	}
	if !reflect.DeepEqual(freqs, expected) {
		t.Errorf("expected %v, got %v", expected, freqs)
	}
}

func TestStopwords_SortedSnapshot(t *testing.T) {
	c := Build(buildConversation(t, "x"))
	c.AddStopwords([]string{"zeta", "alpha"})
	if got := c.Stopwords(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Errorf("expected sorted stopwords, got %v", got)
	}
}
