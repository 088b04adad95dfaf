// Package engine orchestrates the conceptual-recurrence pipeline:
// term catalog -> concept vectors -> utterance similarity matrix ->
// recurrence metrics. Derived artifacts are cached against the catalog's
// stopword version and rebuilt lazily on the next read after a stopword
// change (invalidate-on-read), so adding several stopwords in sequence
// costs one recompute, not many.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/lexfield/echomap/internal/catalog"
	"github.com/lexfield/echomap/internal/concept"
	"github.com/lexfield/echomap/internal/recurrence"
	"github.com/lexfield/echomap/internal/similarity"
	"github.com/lexfield/echomap/internal/text"
	"github.com/lexfield/echomap/pkg/types"
)

// Analyzer runs the full analysis pipeline over one conversation. It is
// safe for concurrent use; a build in progress blocks other readers so a
// returned matrix always reflects a single stopword/key-term
// configuration.
type Analyzer struct {
	conv      *types.Conversation
	catalog   *catalog.TermCatalog
	tokenizer *text.WordTokenizer
	cfg       types.AnalysisConfig
	progress  similarity.ProgressFunc

	mu    sync.Mutex
	cache *artifacts
}

// artifacts holds everything derived from one catalog version.
type artifacts struct {
	version  uint64
	keyTerms []string
	termSim  *types.Matrix
	vectors  [][]float64
	sim      *types.Matrix
}

// NewAnalyzer creates an Analyzer over an already-built conversation.
func NewAnalyzer(conv *types.Conversation, cfg types.AnalysisConfig) (*Analyzer, error) {
	if conv == nil || conv.Len() == 0 {
		return nil, types.ErrEmptyConversation
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{
		conv:      conv,
		catalog:   catalog.Build(conv),
		tokenizer: text.NewWordTokenizer(),
		cfg:       cfg,
	}, nil
}

// NewAnalyzerFromRows tokenizes ingested rows with the default word
// tokenizer and builds an Analyzer over the resulting conversation.
func NewAnalyzerFromRows(rows []types.Row, cfg types.AnalysisConfig) (*Analyzer, error) {
	tok := text.NewWordTokenizer()
	conv, err := types.NewConversation(rows, tok.Tokenize)
	if err != nil {
		return nil, err
	}
	return NewAnalyzer(conv, cfg)
}

// SetProgress installs a progress callback for similarity matrix builds.
func (a *Analyzer) SetProgress(fn similarity.ProgressFunc) {
	a.mu.Lock()
	a.progress = fn
	a.mu.Unlock()
}

// Conversation returns the conversation under analysis.
func (a *Analyzer) Conversation() *types.Conversation {
	return a.conv
}

// Config returns the analysis configuration.
func (a *Analyzer) Config() types.AnalysisConfig {
	return a.cfg
}

// AddStopword adds a stopword to the catalog. Cached artifacts are not
// recomputed eagerly; the next similarity or recurrence read detects the
// version change and rebuilds.
func (a *Analyzer) AddStopword(term string) {
	a.catalog.AddStopword(term)
}

// AddStopwords adds every term in the list; see AddStopword.
func (a *Analyzer) AddStopwords(terms []string) {
	a.catalog.AddStopwords(terms)
}

// Stopwords returns the current stopword set, sorted.
func (a *Analyzer) Stopwords() []string {
	return a.catalog.Stopwords()
}

// MostCommonTerms returns the top-n non-stopword terms by document
// frequency.
func (a *Analyzer) MostCommonTerms(n int) []catalog.TermCount {
	return a.catalog.MostCommonTerms(n)
}

// TermFrequencies returns the full term frequency table.
func (a *Analyzer) TermFrequencies() []catalog.TermCount {
	return a.catalog.TermFrequencies()
}

// KeyTerms returns the current concept basis: the top configured number
// of non-stopword terms.
func (a *Analyzer) KeyTerms() []string {
	return a.catalog.KeyTerms(a.cfg.KeyTerms)
}

// ConceptVectors returns the per-utterance concept vectors and the
// term-term similarity matrix for the current stopword configuration.
// The returned slices are snapshots owned by the caller's read; later
// stopword edits produce new artifacts rather than mutating these.
func (a *Analyzer) ConceptVectors(ctx context.Context) ([][]float64, *types.Matrix, error) {
	art, err := a.ensure(ctx)
	if err != nil {
		return nil, nil, err
	}
	return art.vectors, art.termSim, nil
}

// Similarity returns the N×N utterance similarity matrix, computing it
// if the cache is missing or stale. Callers may slice the result for
// focused inspection via Matrix.Slice without triggering recomputation.
func (a *Analyzer) Similarity(ctx context.Context) (*types.Matrix, error) {
	art, err := a.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return art.sim, nil
}

// TopicRecurrence returns the recurrence score of one utterance along
// one (time scale, direction, speaker relation) axis combination.
func (a *Analyzer) TopicRecurrence(ctx context.Context, utteranceID string, scale types.TimeScale, dir types.Direction, rel types.SpeakerRelation) (float64, error) {
	calc, err := a.calculator(ctx)
	if err != nil {
		return 0, err
	}
	return calc.Score(utteranceID, scale, dir, rel)
}

// AllTopicRecurrences returns the long-form recurrence table: one row
// per utterance per axis combination, in stable order.
func (a *Analyzer) AllTopicRecurrences(ctx context.Context) (types.RecurrenceTable, error) {
	calc, err := a.calculator(ctx)
	if err != nil {
		return nil, err
	}
	return calc.All(), nil
}

// GroupedRecurrence aggregates the similarity matrix over the grouping
// attribute. With normalize true the rows are made row-stochastic.
func (a *Analyzer) GroupedRecurrence(ctx context.Context, attr types.GroupingAttribute, normalize bool) (*types.GroupedMatrix, error) {
	sim, err := a.Similarity(ctx)
	if err != nil {
		return nil, err
	}
	g, err := recurrence.Grouped(a.conv, sim, attr)
	if err != nil {
		return nil, err
	}
	if normalize {
		return recurrence.Normalize(g), nil
	}
	return g, nil
}

// GroupedPercentage returns the grouped matrix expressed as percentages
// of the grand total.
func (a *Analyzer) GroupedPercentage(ctx context.Context, attr types.GroupingAttribute) (*types.GroupedMatrix, error) {
	g, err := a.GroupedRecurrence(ctx, attr, false)
	if err != nil {
		return nil, err
	}
	return recurrence.Percentage(g), nil
}

func (a *Analyzer) calculator(ctx context.Context) (*recurrence.Calculator, error) {
	sim, err := a.Similarity(ctx)
	if err != nil {
		return nil, err
	}
	return recurrence.NewCalculator(a.conv, sim, a.cfg)
}

// ensure returns artifacts matching the current catalog version, building
// them under the lock when missing or stale. Reading the version before
// the build and publishing the artifacts under that version means a
// stopword added mid-build is picked up by the next read.
func (a *Analyzer) ensure(ctx context.Context) (*artifacts, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	version := a.catalog.Version()
	if a.cache != nil && a.cache.version == version {
		return a.cache, nil
	}

	if a.cache != nil {
		log.Printf("engine: stopword set changed (version %d -> %d), rebuilding analysis", a.cache.version, version)
	}

	keyTerms := a.catalog.KeyTerms(a.cfg.KeyTerms)

	builder, err := concept.NewBuilder(a.cfg.SentenceWindow, text.SplitSentences, a.tokenizer.Tokenize)
	if err != nil {
		return nil, err
	}
	termSim := builder.TermSimilarity(a.conv, keyTerms)
	vectors := builder.ConceptVectors(a.conv, keyTerms, termSim)

	sim, err := similarity.NewEngine(a.cfg.NumWorkers).Compute(ctx, vectors, a.progress)
	if err != nil {
		return nil, fmt.Errorf("engine: similarity computation failed: %w", err)
	}

	a.cache = &artifacts{
		version:  version,
		keyTerms: keyTerms,
		termSim:  termSim,
		vectors:  vectors,
		sim:      sim,
	}
	return a.cache, nil
}
