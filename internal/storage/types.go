// Package storage defines the persistence interfaces for Echomap:
// conversations as ingested, and analysis runs with their computed
// matrices. Backends implement the Store interface; sqlite is the
// default, postgres is available for shared deployments.
package storage

import (
	"errors"
	"time"

	"github.com/lexfield/echomap/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ConversationRecord is a stored conversation: the raw rows as ingested
// plus identification metadata. The engine rebuilds the Conversation
// from Rows on load, so tokenization stays a compute-time concern.
type ConversationRecord struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Rows      []types.Row `json:"rows"`
	CreatedAt time.Time   `json:"created_at"`
}

// ResultSet bundles the computed artifacts of one analysis run.
type ResultSet struct {
	Similarity     [][]float64           `json:"similarity"`
	Recurrence     types.RecurrenceTable `json:"recurrence"`
	GroupedSpeaker *types.GroupedMatrix  `json:"grouped_speaker,omitempty"`
	GroupedGroup   *types.GroupedMatrix  `json:"grouped_group,omitempty"`
}

// RunRecord is a stored analysis run: the configuration it was computed
// under and its results. Runs are immutable once written.
type RunRecord struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversation_id"`
	ProfileName    string               `json:"profile_name,omitempty"`
	Config         types.AnalysisConfig `json:"config"`
	Stopwords      []string             `json:"stopwords,omitempty"`
	Results        ResultSet            `json:"results"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Stats summarizes the store contents for the stats endpoint.
type Stats struct {
	Conversations int        `json:"conversations"`
	Runs          int        `json:"runs"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
}

// PaginatedResult represents a paginated result set.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 10, max: 100).
	Limit int

	// SortOrder specifies the sort direction by creation time
	// ("asc" or "desc", default: "desc").
	SortOrder string
}

// Normalize applies defaults and bounds to the ListOptions.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}
}
