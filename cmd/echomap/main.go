// Command echomap runs a conceptual recurrence analysis over a
// conversation file and writes the results as JSON.
//
// The input file holds an ordered JSON array of rows:
//
//	[{"speaker": "Alice", "text": "..."}, {"speaker": "Bob", "text": "..."}]
//
// Output goes to stdout unless -out is given.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lexfield/echomap/internal/catalog"
	"github.com/lexfield/echomap/internal/config"
	"github.com/lexfield/echomap/internal/engine"
	"github.com/lexfield/echomap/internal/storage"
	"github.com/lexfield/echomap/pkg/types"
)

func main() {
	var (
		inputPath        = flag.String("in", "", "Path to the conversation JSON file (required)")
		outputPath       = flag.String("out", "", "Path to write results JSON (default: stdout)")
		profilePath      = flag.String("profile", "", "Path to an analysis profile YAML file")
		stopwordsPath    = flag.String("stopwords", "", "Path to a stopword list YAML file")
		defaultStopwords = flag.Bool("default-stopwords", false, "Seed the analysis with the built-in English stopword list")
		keyTerms         = flag.Int("key-terms", 0, "Override the number of key terms")
		showProgress     = flag.Bool("progress", false, "Log similarity build progress")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*inputPath, *outputPath, *profilePath, *stopwordsPath, *defaultStopwords, *keyTerms, *showProgress); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func run(inputPath, outputPath, profilePath, stopwordsPath string, defaultStopwords bool, keyTerms int, showProgress bool) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	var rows []types.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}

	cfg := types.DefaultAnalysisConfig()
	profileName := ""
	var profile *config.Profile
	if profilePath != "" {
		profile, err = config.LoadProfile(profilePath)
		if err != nil {
			return err
		}
		cfg, err = profile.AnalysisConfig()
		if err != nil {
			return err
		}
		profileName = profile.Name
	}
	if keyTerms > 0 {
		cfg.KeyTerms = keyTerms
	}

	analyzer, err := engine.NewAnalyzerFromRows(rows, cfg)
	if err != nil {
		return err
	}

	if defaultStopwords || (profile != nil && profile.UseDefaultStopwords) {
		analyzer.AddStopwords(catalog.DefaultStopwords)
	}
	if profile != nil {
		analyzer.AddStopwords(profile.Stopwords)
	}
	if stopwordsPath != "" {
		words, err := config.LoadStopwords(stopwordsPath)
		if err != nil {
			return err
		}
		analyzer.AddStopwords(words)
	}

	if showProgress {
		analyzer.SetProgress(func(done, total int) {
			if done == total || done%100 == 0 {
				log.Printf("similarity: %d/%d rows", done, total)
			}
		})
	}

	ctx := context.Background()
	sim, err := analyzer.Similarity(ctx)
	if err != nil {
		return err
	}
	table, err := analyzer.AllTopicRecurrences(ctx)
	if err != nil {
		return err
	}
	groupedSpeaker, err := analyzer.GroupedRecurrence(ctx, types.GroupBySpeaker, false)
	if err != nil {
		return err
	}
	groupedGroup, err := analyzer.GroupedRecurrence(ctx, types.GroupByGroup, false)
	if err != nil {
		return err
	}

	out := resultDocument{
		ProfileName: profileName,
		Config:      cfg,
		Utterances:  sim.Size(),
		KeyTerms:    analyzer.KeyTerms(),
		Stopwords:   analyzer.Stopwords(),
		Results: storage.ResultSet{
			Similarity:     sim.Rows(),
			Recurrence:     table,
			GroupedSpeaker: groupedSpeaker,
			GroupedGroup:   groupedGroup,
		},
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	encoded = append(encoded, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	return os.WriteFile(outputPath, encoded, 0o644)
}

// resultDocument is the top-level output of one CLI run.
type resultDocument struct {
	ProfileName string               `json:"profile_name,omitempty"`
	Config      types.AnalysisConfig `json:"config"`
	Utterances  int                  `json:"utterances"`
	KeyTerms    []string             `json:"key_terms"`
	Stopwords   []string             `json:"stopwords,omitempty"`
	Results     storage.ResultSet    `json:"results"`
}
