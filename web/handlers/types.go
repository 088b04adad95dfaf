package handlers

import (
	"time"

	"github.com/lexfield/echomap/internal/catalog"
	"github.com/lexfield/echomap/pkg/types"
)

// ErrorResponse is the standard error payload for all API endpoints.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Name string      `json:"name"`
	Rows []types.Row `json:"rows"`
}

// ConversationSummary is the list/detail representation of a stored
// conversation. Rows are included only on detail requests.
type ConversationSummary struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Utterances int         `json:"utterances"`
	Speakers   []string    `json:"speakers,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Rows       []types.Row `json:"rows,omitempty"`
}

// AnalyzeRequest is the body of POST /api/conversations/{id}/analyze.
// All fields are optional: an empty body runs the default analysis.
type AnalyzeRequest struct {
	ProfileName string                `json:"profile_name,omitempty"`
	Config      *types.AnalysisConfig `json:"config,omitempty"`
	Stopwords   []string              `json:"stopwords,omitempty"`

	// UseDefaultStopwords seeds the analysis with the built-in English
	// stopword list before applying Stopwords.
	UseDefaultStopwords bool `json:"use_default_stopwords,omitempty"`
}

// AnalyzeResponse reports a completed analysis run.
type AnalyzeResponse struct {
	RunID          string               `json:"run_id"`
	ConversationID string               `json:"conversation_id"`
	Utterances     int                  `json:"utterances"`
	KeyTerms       []string             `json:"key_terms"`
	Config         types.AnalysisConfig `json:"config"`
	CreatedAt      time.Time            `json:"created_at"`
}

// SimilarityResponse is the body of GET /api/runs/{id}/similarity.
// Offset is non-zero when a window of the matrix was requested.
type SimilarityResponse struct {
	RunID     string      `json:"run_id"`
	Size      int         `json:"size"`
	Offset    int         `json:"offset"`
	Threshold float64     `json:"threshold"`
	Values    [][]float64 `json:"values"`
}

// RecurrenceResponse is the body of GET /api/runs/{id}/recurrence.
type RecurrenceResponse struct {
	RunID string                `json:"run_id"`
	Rows  types.RecurrenceTable `json:"rows"`
}

// GroupedResponse is the body of GET /api/runs/{id}/grouped.
type GroupedResponse struct {
	RunID     string               `json:"run_id"`
	Attribute string               `json:"attribute"`
	Mode      string               `json:"mode"`
	Matrix    *types.GroupedMatrix `json:"matrix"`
}

// TermsResponse is the body of GET /api/conversations/{id}/terms.
type TermsResponse struct {
	ConversationID string              `json:"conversation_id"`
	Vocabulary     int                 `json:"vocabulary"`
	Terms          []catalog.TermCount `json:"terms"`
}

// ProgressEvent is broadcast over the websocket feed while a similarity
// matrix is being computed, and once more when the run is stored.
type ProgressEvent struct {
	Type           string `json:"type"` // "progress" or "complete"
	ConversationID string `json:"conversation_id"`
	RunID          string `json:"run_id,omitempty"`
	Done           int    `json:"done"`
	Total          int    `json:"total"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Conversations int        `json:"conversations"`
	Runs          int        `json:"runs"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	Version       string     `json:"version"`
}
