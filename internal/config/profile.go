package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lexfield/echomap/pkg/types"
)

// Profile is a named, file-based analysis configuration. Profiles let a
// study fix its parameters (and stopword list) once and reuse them across
// conversations and runs.
type Profile struct {
	// Name identifies the profile in run records.
	Name string `yaml:"name"`

	// Analysis overrides the default analysis parameters. Omitted fields
	// keep their defaults.
	Analysis struct {
		KeyTerms       *int `yaml:"key_terms"`
		SentenceWindow *int `yaml:"sentence_window"`
		ShortWindow    *int `yaml:"short_window"`
		MediumWindow   *int `yaml:"medium_window"`
		LongWindow     *int `yaml:"long_window"`
		NumWorkers     *int `yaml:"num_workers"`
	} `yaml:"analysis"`

	// Stopwords are added to the catalog before any computation.
	Stopwords []string `yaml:"stopwords"`

	// UseDefaultStopwords additionally seeds the built-in English list.
	UseDefaultStopwords bool `yaml:"use_default_stopwords"`
}

// LoadProfile reads a YAML profile from disk.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: failed to parse profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = "default"
	}
	return &p, nil
}

// AnalysisConfig resolves the profile against the defaults and validates
// the result.
func (p *Profile) AnalysisConfig() (types.AnalysisConfig, error) {
	cfg := types.DefaultAnalysisConfig()
	if v := p.Analysis.KeyTerms; v != nil {
		cfg.KeyTerms = *v
	}
	if v := p.Analysis.SentenceWindow; v != nil {
		cfg.SentenceWindow = *v
	}
	if v := p.Analysis.ShortWindow; v != nil {
		cfg.ShortWindow = *v
	}
	if v := p.Analysis.MediumWindow; v != nil {
		cfg.MediumWindow = *v
	}
	if v := p.Analysis.LongWindow; v != nil {
		cfg.LongWindow = *v
	}
	if v := p.Analysis.NumWorkers; v != nil {
		cfg.NumWorkers = *v
	}
	if err := cfg.Validate(); err != nil {
		return types.AnalysisConfig{}, err
	}
	return cfg, nil
}

// LoadStopwords reads a YAML stopword list: either a bare sequence of
// terms or a mapping with a "stopwords" key.
func LoadStopwords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read stopword list %s: %w", path, err)
	}

	var bare []string
	if err := yaml.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Stopwords []string `yaml:"stopwords"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("config: failed to parse stopword list %s: %w", path, err)
	}
	return wrapped.Stopwords, nil
}
