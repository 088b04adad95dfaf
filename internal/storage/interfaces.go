package storage

import "context"

// Store provides persistence for conversations and analysis runs.
type Store interface {
	// SaveConversation creates or replaces a conversation record
	// (upsert semantics on ID).
	SaveConversation(ctx context.Context, rec *ConversationRecord) error

	// GetConversation retrieves a conversation by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetConversation(ctx context.Context, id string) (*ConversationRecord, error)

	// ListConversations retrieves conversations with pagination, newest
	// first by default.
	ListConversations(ctx context.Context, opts ListOptions) (*PaginatedResult[ConversationRecord], error)

	// DeleteConversation removes a conversation and its runs.
	// Returns ErrNotFound if it doesn't exist.
	DeleteConversation(ctx context.Context, id string) error

	// SaveRun stores an analysis run. Runs are write-once.
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if it doesn't exist.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns retrieves the runs of one conversation with pagination.
	ListRuns(ctx context.Context, conversationID string, opts ListOptions) (*PaginatedResult[RunRecord], error)

	// Stats returns store-wide counters.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the underlying database resources.
	Close() error
}
