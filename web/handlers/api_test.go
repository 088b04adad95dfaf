package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfield/echomap/internal/config"
	"github.com/lexfield/echomap/internal/storage/sqlite"
	"github.com/lexfield/echomap/pkg/types"
)

// newTestMux wires the handlers under the same route patterns the
// server registers, so PathValue resolution matches production.
func newTestMux(t *testing.T) (*http.ServeMux, *APIHandlers) {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	h := NewAPIHandlers(store, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", h.CreateConversation)
	mux.HandleFunc("GET /api/conversations", h.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", h.GetConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.DeleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/terms", h.GetTerms)
	mux.HandleFunc("POST /api/conversations/{id}/analyze", h.RunAnalysis)
	mux.HandleFunc("GET /api/conversations/{id}/runs", h.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/runs/{id}/similarity", h.GetSimilarity)
	mux.HandleFunc("GET /api/runs/{id}/recurrence", h.GetRecurrence)
	mux.HandleFunc("GET /api/runs/{id}/grouped", h.GetGrouped)
	return mux, h
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func sampleRows() []types.Row {
	return []types.Row{
		{Speaker: "Alice", Group: "host", Text: "The engine drives the wheels forward."},
		{Speaker: "Bob", Group: "guest", Text: "The engine and the motor both turn wheels."},
		{Speaker: "Alice", Group: "host", Text: "Wheels and motor, that is the whole machine."},
	}
}

func createConversation(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/conversations", CreateConversationRequest{
		Name: "test dialogue",
		Rows: sampleRows(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody[ConversationSummary](t, rec).ID
}

func runAnalysis(t *testing.T, mux *http.ServeMux, convID string, req *AnalyzeRequest) AnalyzeResponse {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/conversations/"+convID+"/analyze", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[AnalyzeResponse](t, rec)
}

func TestCreateConversation(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/conversations", CreateConversationRequest{
		Name: "test dialogue",
		Rows: sampleRows(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	summary := decodeBody[ConversationSummary](t, rec)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, "test dialogue", summary.Name)
	assert.Equal(t, 3, summary.Utterances)
	assert.Equal(t, []string{"Alice", "Bob"}, summary.Speakers)
}

func TestCreateConversationRejectsMissingText(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/conversations", CreateConversationRequest{
		Rows: []types.Row{{Speaker: "Alice"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid conversation", errResp.Error)
}

func TestCreateConversationRejectsEmptyRows(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/conversations", CreateConversationRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationIncludesRows(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	summary := decodeBody[ConversationSummary](t, rec)
	assert.Len(t, summary.Rows, 3)
	assert.Equal(t, "Bob", summary.Rows[1].Speaker)
}

func TestGetConversationNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListConversations(t *testing.T) {
	mux, _ := newTestMux(t)
	for i := 0; i < 3; i++ {
		createConversation(t, mux)
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/conversations?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Items   []ConversationSummary `json:"Items"`
		Total   int                   `json:"Total"`
		HasMore bool                  `json:"HasMore"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 3, result.Total)
	assert.True(t, result.HasMore)
}

func TestDeleteConversation(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	rec := doJSON(t, mux, http.MethodDelete, "/api/conversations/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTerms(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/conversations/"+id+"/terms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[TermsResponse](t, rec)
	assert.Equal(t, id, resp.ConversationID)
	assert.Positive(t, resp.Vocabulary)
	require.NotEmpty(t, resp.Terms)
	// "the" appears in every utterance, so it heads the full frequency list.
	assert.Equal(t, "the", resp.Terms[0].Term)
	assert.Equal(t, 3, resp.Terms[0].Count)
}

func TestGetTermsMostCommonExcludesStopwords(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/conversations/"+id+"/terms?n=5&stopword=the", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[TermsResponse](t, rec)
	for _, tc := range resp.Terms {
		assert.NotEqual(t, "the", tc.Term)
	}
}

func TestRunAnalysisAndFetchResults(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	resp := runAnalysis(t, mux, id, nil)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, id, resp.ConversationID)
	assert.Equal(t, 3, resp.Utterances)
	assert.NotEmpty(t, resp.KeyTerms)

	// Similarity matrix
	rec := doJSON(t, mux, http.MethodGet, "/api/runs/"+resp.RunID+"/similarity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	simResp := decodeBody[SimilarityResponse](t, rec)
	assert.Equal(t, 3, simResp.Size)
	require.Len(t, simResp.Values, 3)
	assert.Equal(t, 1.0, simResp.Values[0][0])
	assert.Equal(t, simResp.Values[0][1], simResp.Values[1][0])

	// Recurrence table: 3 utterances x 12 axis combinations
	rec = doJSON(t, mux, http.MethodGet, "/api/runs/"+resp.RunID+"/recurrence", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recResp := decodeBody[RecurrenceResponse](t, rec)
	assert.Len(t, recResp.Rows, 36)

	// Grouped matrix
	rec = doJSON(t, mux, http.MethodGet, "/api/runs/"+resp.RunID+"/grouped?attribute=speaker", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grouped := decodeBody[GroupedResponse](t, rec)
	assert.Equal(t, "raw", grouped.Mode)
	assert.Equal(t, []string{"Alice", "Bob"}, grouped.Matrix.Labels)
}

func TestRunAnalysisWithStopwords(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	resp := runAnalysis(t, mux, id, &AnalyzeRequest{Stopwords: []string{"the", "and"}})

	rec := doJSON(t, mux, http.MethodGet, "/api/runs/"+resp.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var run struct {
		Stopwords []string `json:"stopwords"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.ElementsMatch(t, []string{"the", "and"}, run.Stopwords)

	assert.NotContains(t, resp.KeyTerms, "the")
	assert.NotContains(t, resp.KeyTerms, "and")
}

func TestRunAnalysisInvalidConfig(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)

	bad := types.DefaultAnalysisConfig()
	bad.ShortWindow = 30 // not below medium
	rec := doJSON(t, mux, http.MethodPost, "/api/conversations/"+id+"/analyze",
		AnalyzeRequest{Config: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAnalysisConversationNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/conversations/missing/analyze", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)
	runAnalysis(t, mux, id, nil)
	runAnalysis(t, mux, id, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/conversations/"+id+"/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Total int `json:"Total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 2, result.Total)
}

func TestGetSimilarityThresholdAndWindow(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)
	resp := runAnalysis(t, mux, id, nil)

	// A threshold of 1.0 keeps only perfect matches (the diagonal).
	rec := doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/api/runs/%s/similarity?threshold=1.0", resp.RunID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	simResp := decodeBody[SimilarityResponse](t, rec)
	for i, row := range simResp.Values {
		for j, v := range row {
			if i == j {
				assert.Equal(t, 1.0, v)
			} else {
				assert.Equal(t, 0.0, v)
			}
		}
	}

	// Window of the matrix
	rec = doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/api/runs/%s/similarity?from=1&to=3", resp.RunID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	simResp = decodeBody[SimilarityResponse](t, rec)
	assert.Equal(t, 2, simResp.Size)
	assert.Equal(t, 1, simResp.Offset)
	assert.Len(t, simResp.Values, 2)
}

func TestGetSimilarityInvalidThreshold(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)
	resp := runAnalysis(t, mux, id, nil)

	rec := doJSON(t, mux, http.MethodGet,
		fmt.Sprintf("/api/runs/%s/similarity?threshold=1.5", resp.RunID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecurrenceFiltered(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)
	resp := runAnalysis(t, mux, id, nil)

	rec := doJSON(t, mux, http.MethodGet,
		resp.runPath("/recurrence?time_scale=short&direction=forward&speaker_relation=self"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	recResp := decodeBody[RecurrenceResponse](t, rec)
	assert.Len(t, recResp.Rows, 3)
	for _, row := range recResp.Rows {
		assert.Equal(t, types.TimeScaleShort, row.TimeScale)
		assert.Equal(t, types.DirectionForward, row.Direction)
		assert.Equal(t, types.RelationSelf, row.SpeakerRelation)
	}
}

func (r AnalyzeResponse) runPath(suffix string) string {
	return "/api/runs/" + r.RunID + suffix
}

func TestGetGroupedModes(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)
	resp := runAnalysis(t, mux, id, nil)

	rec := doJSON(t, mux, http.MethodGet, resp.runPath("/grouped?mode=normalized"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grouped := decodeBody[GroupedResponse](t, rec)
	for _, row := range grouped.Matrix.Values {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum > 0 {
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}

	rec = doJSON(t, mux, http.MethodGet, resp.runPath("/grouped?mode=percentage"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grouped = decodeBody[GroupedResponse](t, rec)
	total := 0.0
	for _, row := range grouped.Matrix.Values {
		for _, v := range row {
			total += v
		}
	}
	assert.InDelta(t, 100.0, total, 1e-9)
}

func TestGetGroupedInvalidAttribute(t *testing.T) {
	mux, _ := newTestMux(t)
	id := createConversation(t, mux)
	resp := runAnalysis(t, mux, id, nil)

	rec := doJSON(t, mux, http.MethodGet, resp.runPath("/grouped?attribute=color"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
