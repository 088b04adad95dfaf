package types

import "fmt"

// Default analysis parameters.
const (
	// DefaultKeyTerms is the size of the key-term concept basis.
	DefaultKeyTerms = 50

	// DefaultSentenceWindow is the number of consecutive sentences per
	// co-occurrence window when building the term-term similarity matrix.
	DefaultSentenceWindow = 3

	// Window sizes (in neighboring utterances) behind each time scale.
	// Fixed per run; see AnalysisConfig to override.
	DefaultShortWindow  = 5
	DefaultMediumWindow = 10
	DefaultLongWindow   = 20
)

// AnalysisConfig holds the tunable parameters of a conceptual-recurrence
// analysis. A zero value is not usable; obtain one from
// DefaultAnalysisConfig and override fields as needed.
type AnalysisConfig struct {
	// KeyTerms is the number of top-frequency terms forming the concept
	// basis. Values larger than the vocabulary are clamped, not rejected.
	KeyTerms int `json:"key_terms" yaml:"key_terms"`

	// SentenceWindow is the sliding co-occurrence window size in sentences.
	SentenceWindow int `json:"sentence_window" yaml:"sentence_window"`

	// ShortWindow, MediumWindow and LongWindow are the utterance-window
	// sizes selected by the short/medium/long time scales. They must be
	// strictly increasing.
	ShortWindow  int `json:"short_window" yaml:"short_window"`
	MediumWindow int `json:"medium_window" yaml:"medium_window"`
	LongWindow   int `json:"long_window" yaml:"long_window"`

	// NumWorkers bounds the parallelism of matrix construction.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// DefaultAnalysisConfig returns the documented default configuration.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		KeyTerms:       DefaultKeyTerms,
		SentenceWindow: DefaultSentenceWindow,
		ShortWindow:    DefaultShortWindow,
		MediumWindow:   DefaultMediumWindow,
		LongWindow:     DefaultLongWindow,
		NumWorkers:     4,
	}
}

// Validate checks all parameters and returns ErrInvalidConfig (wrapped
// with the offending parameter) on the first violation.
func (c AnalysisConfig) Validate() error {
	if c.KeyTerms < 1 {
		return fmt.Errorf("%w: key_terms must be >= 1, got %d", ErrInvalidConfig, c.KeyTerms)
	}
	if c.SentenceWindow < 1 {
		return fmt.Errorf("%w: sentence_window must be >= 1, got %d", ErrInvalidConfig, c.SentenceWindow)
	}
	if c.ShortWindow < 1 {
		return fmt.Errorf("%w: short_window must be >= 1, got %d", ErrInvalidConfig, c.ShortWindow)
	}
	if c.MediumWindow <= c.ShortWindow {
		return fmt.Errorf("%w: medium_window must exceed short_window", ErrInvalidConfig)
	}
	if c.LongWindow <= c.MediumWindow {
		return fmt.Errorf("%w: long_window must exceed medium_window", ErrInvalidConfig)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("%w: num_workers must be >= 1, got %d", ErrInvalidConfig, c.NumWorkers)
	}
	return nil
}

// WindowFor maps a time scale to its configured window size.
func (c AnalysisConfig) WindowFor(scale TimeScale) (int, error) {
	switch scale {
	case TimeScaleShort:
		return c.ShortWindow, nil
	case TimeScaleMedium:
		return c.MediumWindow, nil
	case TimeScaleLong:
		return c.LongWindow, nil
	}
	return 0, fmt.Errorf("%w: unknown time_scale %q", ErrInvalidConfig, scale)
}
