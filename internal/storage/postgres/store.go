// Package postgres implements storage.Store on PostgreSQL for shared
// deployments where several analysts work against one database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/lexfield/echomap/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	rows_json  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	profile_name    TEXT NOT NULL DEFAULT '',
	config_json     JSONB NOT NULL,
	stopwords_json  JSONB NOT NULL DEFAULT '[]',
	results_json    JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_conversation ON runs(conversation_id, created_at);
`

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore connects to PostgreSQL using the given DSN and ensures the
// schema exists.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveConversation implements storage.Store.
func (s *Store) SaveConversation(ctx context.Context, rec *storage.ConversationRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: conversation record requires an ID", storage.ErrInvalidInput)
	}

	rowsJSON, err := json.Marshal(rec.Rows)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal rows: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, name, rows_json, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			rows_json = EXCLUDED.rows_json
	`, rec.ID, rec.Name, string(rowsJSON), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to save conversation: %w", err)
	}
	return nil
}

// GetConversation implements storage.Store.
func (s *Store) GetConversation(ctx context.Context, id string) (*storage.ConversationRecord, error) {
	rec := &storage.ConversationRecord{}
	var rowsJSON []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rows_json, created_at FROM conversations WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Name, &rowsJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get conversation: %w", err)
	}

	if err := json.Unmarshal(rowsJSON, &rec.Rows); err != nil {
		return nil, fmt.Errorf("postgres: failed to unmarshal rows: %w", err)
	}
	return rec, nil
}

// ListConversations implements storage.Store.
func (s *Store) ListConversations(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[storage.ConversationRecord], error) {
	opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count conversations: %w", err)
	}

	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}
	offset := (opts.Page - 1) * opts.Limit

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, rows_json, created_at FROM conversations
		ORDER BY created_at %s, id %s LIMIT $1 OFFSET $2
	`, order, order), opts.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list conversations: %w", err)
	}
	defer rows.Close()

	result := &storage.PaginatedResult[storage.ConversationRecord]{
		Page:     opts.Page,
		PageSize: opts.Limit,
		Total:    total,
	}
	for rows.Next() {
		var rec storage.ConversationRecord
		var rowsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Name, &rowsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan conversation: %w", err)
		}
		if err := json.Unmarshal(rowsJSON, &rec.Rows); err != nil {
			return nil, fmt.Errorf("postgres: failed to unmarshal rows: %w", err)
		}
		result.Items = append(result.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: conversation rows error: %w", err)
	}

	result.HasMore = offset+len(result.Items) < total
	return result, nil
}

// DeleteConversation implements storage.Store. Runs cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to check delete result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveRun implements storage.Store.
func (s *Store) SaveRun(ctx context.Context, rec *storage.RunRecord) error {
	if rec == nil || rec.ID == "" || rec.ConversationID == "" {
		return fmt.Errorf("%w: run record requires ID and conversation ID", storage.ErrInvalidInput)
	}

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal config: %w", err)
	}
	stopwordsJSON, err := json.Marshal(rec.Stopwords)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal stopwords: %w", err)
	}
	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal results: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, conversation_id, profile_name, config_json, stopwords_json, results_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.ConversationID, rec.ProfileName, string(configJSON), string(stopwordsJSON), string(resultsJSON), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to save run: %w", err)
	}
	return nil
}

// GetRun implements storage.Store.
func (s *Store) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	rec := &storage.RunRecord{}
	var configJSON, stopwordsJSON, resultsJSON []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, profile_name, config_json, stopwords_json, results_json, created_at
		FROM runs WHERE id = $1
	`, id).Scan(&rec.ID, &rec.ConversationID, &rec.ProfileName, &configJSON, &stopwordsJSON, &resultsJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get run: %w", err)
	}

	if err := unmarshalRun(rec, configJSON, stopwordsJSON, resultsJSON); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns implements storage.Store.
func (s *Store) ListRuns(ctx context.Context, conversationID string, opts storage.ListOptions) (*storage.PaginatedResult[storage.RunRecord], error) {
	opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count runs: %w", err)
	}

	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}
	offset := (opts.Page - 1) * opts.Limit

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, conversation_id, profile_name, config_json, stopwords_json, results_json, created_at
		FROM runs WHERE conversation_id = $1
		ORDER BY created_at %s, id %s LIMIT $2 OFFSET $3
	`, order, order), conversationID, opts.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list runs: %w", err)
	}
	defer rows.Close()

	result := &storage.PaginatedResult[storage.RunRecord]{
		Page:     opts.Page,
		PageSize: opts.Limit,
		Total:    total,
	}
	for rows.Next() {
		var rec storage.RunRecord
		var configJSON, stopwordsJSON, resultsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.ProfileName, &configJSON, &stopwordsJSON, &resultsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan run: %w", err)
		}
		if err := unmarshalRun(&rec, configJSON, stopwordsJSON, resultsJSON); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: run rows error: %w", err)
	}

	result.HasMore = offset+len(result.Items) < total
	return result, nil
}

// Stats implements storage.Store.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM runs),
			(SELECT MAX(created_at) FROM runs)
	`).Scan(&stats.Conversations, &stats.Runs, &nullTimeScanner{&stats.LastRunAt})
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query stats: %w", err)
	}
	return stats, nil
}

// nullTimeScanner scans a nullable timestamp into a *time.Time pointer.
type nullTimeScanner struct {
	dst **time.Time
}

func (n *nullTimeScanner) Scan(value any) error {
	if value == nil {
		*n.dst = nil
		return nil
	}
	t, ok := value.(time.Time)
	if !ok {
		return fmt.Errorf("postgres: unexpected type %T for timestamp", value)
	}
	*n.dst = &t
	return nil
}

func unmarshalRun(rec *storage.RunRecord, configJSON, stopwordsJSON, resultsJSON []byte) error {
	if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
		return fmt.Errorf("postgres: failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal(stopwordsJSON, &rec.Stopwords); err != nil {
		return fmt.Errorf("postgres: failed to unmarshal stopwords: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &rec.Results); err != nil {
		return fmt.Errorf("postgres: failed to unmarshal results: %w", err)
	}
	return nil
}

// Interface compliance.
var _ storage.Store = (*Store)(nil)
