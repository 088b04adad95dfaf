package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfield/echomap/internal/storage"
	"github.com/lexfield/echomap/internal/storage/sqlite"
	"github.com/lexfield/echomap/pkg/types"
)

func TestGetStats(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewStatsHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handler.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[StatsResponse](t, rec)
	assert.Equal(t, 0, resp.Conversations)
	assert.Equal(t, 0, resp.Runs)
	assert.Nil(t, resp.LastRunAt)
	assert.Equal(t, Version, resp.Version)
}

func TestGetStatsWithData(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveConversation(ctx, &storage.ConversationRecord{
		ID:   "conv-1",
		Name: "sample",
		Rows: []types.Row{{Speaker: "Alice", Text: "hello there"}},
	}))
	require.NoError(t, store.SaveRun(ctx, &storage.RunRecord{
		ID:             "run-1",
		ConversationID: "conv-1",
		Config:         types.DefaultAnalysisConfig(),
	}))

	handler := NewStatsHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handler.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[StatsResponse](t, rec)
	assert.Equal(t, 1, resp.Conversations)
	assert.Equal(t, 1, resp.Runs)
	require.NotNil(t, resp.LastRunAt)
}
