package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfield/echomap/internal/storage"
	"github.com/lexfield/echomap/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleConversation(id string) *storage.ConversationRecord {
	return &storage.ConversationRecord{
		ID:   id,
		Name: "interview",
		Rows: []types.Row{
			{Speaker: "Alice", Group: "host", Text: "How did the project start?"},
			{Speaker: "Bob", Group: "guest", Text: "The project started as a prototype."},
		},
	}
}

func sampleRun(id, conversationID string) *storage.RunRecord {
	return &storage.RunRecord{
		ID:             id,
		ConversationID: conversationID,
		ProfileName:    "default",
		Config:         types.DefaultAnalysisConfig(),
		Stopwords:      []string{"the", "a"},
		Results: storage.ResultSet{
			Similarity: [][]float64{{1, 0.5}, {0.5, 1}},
			Recurrence: types.RecurrenceTable{
				{UtteranceID: "u0", OrderIndex: 0, Speaker: "Alice",
					TimeScale: types.TimeScaleShort, Direction: types.DirectionForward,
					SpeakerRelation: types.RelationOther, Score: 0.5},
			},
		},
	}
}

func TestSaveAndGetConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleConversation("conv-1")
	require.NoError(t, store.SaveConversation(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "interview", got.Name)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "Alice", got.Rows[0].Speaker)
	assert.Equal(t, "guest", got.Rows[1].Group)
}

func TestSaveConversationUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleConversation("conv-1")
	require.NoError(t, store.SaveConversation(ctx, rec))

	rec.Name = "interview (edited)"
	rec.Rows = rec.Rows[:1]
	require.NoError(t, store.SaveConversation(ctx, rec))

	got, err := store.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "interview (edited)", got.Name)
	assert.Len(t, got.Rows, 1)
}

func TestSaveConversationInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveConversation(ctx, &storage.ConversationRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestGetConversationNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListConversationsPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := sampleConversation(fmt.Sprintf("conv-%d", i))
		require.NoError(t, store.SaveConversation(ctx, rec))
	}

	page1, err := store.ListConversations(ctx, storage.ListOptions{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page1.Items, 2)
	assert.Equal(t, 5, page1.Total)
	assert.True(t, page1.HasMore)

	page3, err := store.ListConversations(ctx, storage.ListOptions{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
}

func TestDeleteConversationCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("conv-1")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", "conv-1")))

	require.NoError(t, store.DeleteConversation(ctx, "conv-1"))

	_, err := store.GetConversation(ctx, "conv-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteConversationNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("conv-1")))
	run := sampleRun("run-1", "conv-1")
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, "default", got.ProfileName)
	assert.Equal(t, types.DefaultKeyTerms, got.Config.KeyTerms)
	assert.Equal(t, []string{"the", "a"}, got.Stopwords)
	require.Len(t, got.Results.Similarity, 2)
	assert.Equal(t, 0.5, got.Results.Similarity[0][1])
	require.Len(t, got.Results.Recurrence, 1)
	assert.Equal(t, types.TimeScaleShort, got.Results.Recurrence[0].TimeScale)
}

func TestSaveRunInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.SaveRun(ctx, &storage.RunRecord{ID: "run-1"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestListRunsScopedToConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("conv-1")))
	require.NoError(t, store.SaveConversation(ctx, sampleConversation("conv-2")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", "conv-1")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-2", "conv-1")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-3", "conv-2")))

	result, err := store.ListRuns(ctx, "conv-1", storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.Total)
	for _, run := range result.Items {
		assert.Equal(t, "conv-1", run.ConversationID)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Conversations)
	assert.Equal(t, 0, stats.Runs)
	assert.Nil(t, stats.LastRunAt)

	require.NoError(t, store.SaveConversation(ctx, sampleConversation("conv-1")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", "conv-1")))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conversations)
	assert.Equal(t, 1, stats.Runs)
	require.NotNil(t, stats.LastRunAt)
}
