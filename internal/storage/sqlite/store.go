// Package sqlite implements storage.Store on SQLite via modernc.org/sqlite.
// It is the default backend: a single local file, no external services.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lexfield/echomap/internal/storage"
)

// Schema creates the tables used by the store. Conversations and run
// payloads are stored as JSON text: the matrices are read and written
// whole, never queried by entry.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	rows_json  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	profile_name    TEXT NOT NULL DEFAULT '',
	config_json     TEXT NOT NULL,
	stopwords_json  TEXT NOT NULL DEFAULT '[]',
	results_json    TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_conversation ON runs(conversation_id, created_at);
`

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at the given DSN and
// ensures the schema exists.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent
	// load; WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// GetDB exposes the underlying connection for handlers that need direct
// access (settings, diagnostics).
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close closes the database connection.
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
		return fmt.Errorf("sqlite: failed to marshal rows: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, name, rows_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			rows_json = excluded.rows_json
	`, rec.ID, rec.Name, string(rowsJSON), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save conversation: %w", err)
	}
	return nil
}

// GetConversation implements storage.Store.
func (s *Store) GetConversation(ctx context.Context, id string) (*storage.ConversationRecord, error) {
	rec := &storage.ConversationRecord{}
	var rowsJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, rows_json, created_at FROM conversations WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Name, &rowsJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal rows: %w", err)
	}
	return rec, nil
}

// ListConversations implements storage.Store.
func (s *Store) ListConversations(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[storage.ConversationRecord], error) {
	opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count conversations: %w", err)
	}

	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}
	offset := (opts.Page - 1) * opts.Limit

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, rows_json, created_at FROM conversations
		ORDER BY created_at %s, id %s LIMIT ? OFFSET ?
	`, order, order), opts.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list conversations: %w", err)
	}
	defer rows.Close()

	result := &storage.PaginatedResult[storage.ConversationRecord]{
		Page:     opts.Page,
		PageSize: opts.Limit,
		Total:    total,
	}
	for rows.Next() {
		var rec storage.ConversationRecord
		var rowsJSON string
		if err := rows.Scan(&rec.ID, &rec.Name, &rowsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(rowsJSON), &rec.Rows); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal rows: %w", err)
		}
		result.Items = append(result.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: conversation rows error: %w", err)
	}

	result.HasMore = offset+len(result.Items) < total
	return result, nil
}

// DeleteConversation implements storage.Store. Runs cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check delete result: %w", err)
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
		return fmt.Errorf("sqlite: failed to marshal config: %w", err)
	}
	stopwordsJSON, err := json.Marshal(rec.Stopwords)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal stopwords: %w", err)
	}
	resultsJSON, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal results: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, conversation_id, profile_name, config_json, stopwords_json, results_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ConversationID, rec.ProfileName, string(configJSON), string(stopwordsJSON), string(resultsJSON), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save run: %w", err)
	}
	return nil
}

// GetRun implements storage.Store.
func (s *Store) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	rec := &storage.RunRecord{}
	var configJSON, stopwordsJSON, resultsJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, profile_name, config_json, stopwords_json, results_json, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&rec.ID, &rec.ConversationID, &rec.ProfileName, &configJSON, &stopwordsJSON, &resultsJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get run: %w", err)
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
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE conversation_id = ?`, conversationID).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count runs: %w", err)
	}

	order := "DESC"
	if opts.SortOrder == "asc" {
		order = "ASC"
	}
	offset := (opts.Page - 1) * opts.Limit

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, conversation_id, profile_name, config_json, stopwords_json, results_json, created_at
		FROM runs WHERE conversation_id = ?
		ORDER BY created_at %s, id %s LIMIT ? OFFSET ?
	`, order, order), conversationID, opts.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list runs: %w", err)
	}
	defer rows.Close()

	result := &storage.PaginatedResult[storage.RunRecord]{
		Page:     opts.Page,
		PageSize: opts.Limit,
		Total:    total,
	}
	for rows.Next() {
		var rec storage.RunRecord
		var configJSON, stopwordsJSON, resultsJSON string
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.ProfileName, &configJSON, &stopwordsJSON, &resultsJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan run: %w", err)
		}
		if err := unmarshalRun(&rec, configJSON, stopwordsJSON, resultsJSON); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: run rows error: %w", err)
	}

	result.HasMore = offset+len(result.Items) < total
	return result, nil
}

// Stats implements storage.Store.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&stats.Conversations); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count runs: %w", err)
	}

	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM runs`).Scan(&last); err != nil {
		return nil, fmt.Errorf("sqlite: failed to query last run time: %w", err)
	}
	if last.Valid {
		stats.LastRunAt = &last.Time
	}
	return stats, nil
}

func unmarshalRun(rec *storage.RunRecord, configJSON, stopwordsJSON, resultsJSON string) error {
	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return fmt.Errorf("sqlite: failed to unmarshal config: %w", err)
	}
	if err := json.Unmarshal([]byte(stopwordsJSON), &rec.Stopwords); err != nil {
		return fmt.Errorf("sqlite: failed to unmarshal stopwords: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &rec.Results); err != nil {
		return fmt.Errorf("sqlite: failed to unmarshal results: %w", err)
	}
	return nil
}

// Interface compliance.
var _ storage.Store = (*Store)(nil)
