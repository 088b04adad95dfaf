package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/lexfield/echomap/internal/catalog"
	"github.com/lexfield/echomap/internal/config"
	"github.com/lexfield/echomap/internal/engine"
	"github.com/lexfield/echomap/internal/recurrence"
	"github.com/lexfield/echomap/internal/storage"
	"github.com/lexfield/echomap/internal/text"
	"github.com/lexfield/echomap/pkg/types"
)

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	store  storage.Store
	config *config.Config
	hub    *WebSocketHub // optional; nil disables progress broadcast
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(store storage.Store, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		store:  store,
		config: cfg,
	}
}

// SetHub installs the websocket hub used for progress broadcast.
func (h *APIHandlers) SetHub(hub *WebSocketHub) {
	h.hub = hub
}

// CreateConversation handles POST /api/conversations - ingest a
// conversation from ordered rows.
func (h *APIHandlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	// Validate rows up front so malformed input never reaches the store.
	tok := text.NewWordTokenizer()
	conv, err := types.NewConversation(req.Rows, tok.Tokenize)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid conversation", err)
		return
	}

	rec := &storage.ConversationRecord{
		ID:   generateID("conv"),
		Name: req.Name,
		Rows: req.Rows,
	}
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	if err := h.store.SaveConversation(r.Context(), rec); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save conversation", err)
		return
	}

	respondJSON(w, http.StatusCreated, ConversationSummary{
		ID:         rec.ID,
		Name:       rec.Name,
		Utterances: conv.Len(),
		Speakers:   conv.Speakers(),
		CreatedAt:  rec.CreatedAt,
	})
}

// ListConversations handles GET /api/conversations.
func (h *APIHandlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Page:      parseInt(r.URL.Query().Get("page"), 1),
		Limit:     parseInt(r.URL.Query().Get("limit"), 10),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	result, err := h.store.ListConversations(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list conversations", err)
		return
	}

	summaries := make([]ConversationSummary, 0, len(result.Items))
	for _, rec := range result.Items {
		summaries = append(summaries, ConversationSummary{
			ID:         rec.ID,
			Name:       rec.Name,
			Utterances: len(rec.Rows),
			CreatedAt:  rec.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, storage.PaginatedResult[ConversationSummary]{
		Items:    summaries,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		HasMore:  result.HasMore,
	})
}

// GetConversation handles GET /api/conversations/{id}.
func (h *APIHandlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "conversation ID is required", nil)
		return
	}

	rec, err := h.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get conversation", err)
		return
	}

	respondJSON(w, http.StatusOK, ConversationSummary{
		ID:         rec.ID,
		Name:       rec.Name,
		Utterances: len(rec.Rows),
		CreatedAt:  rec.CreatedAt,
		Rows:       rec.Rows,
	})
}

// DeleteConversation handles DELETE /api/conversations/{id}. Stored
// runs for the conversation are removed with it.
func (h *APIHandlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "conversation ID is required", nil)
		return
	}

	err := h.store.DeleteConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete conversation", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTerms handles GET /api/conversations/{id}/terms - the term catalog
// of a conversation. With ?n= the list is cut to the n most common
// terms excluding stopwords; without it the full ranked frequency list
// (stopwords included) is returned.
func (h *APIHandlers) GetTerms(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get conversation", err)
		return
	}

	tok := text.NewWordTokenizer()
	conv, err := types.NewConversation(rec.Rows, tok.Tokenize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to rebuild conversation", err)
		return
	}
	cat := catalog.Build(conv)
	if stops := r.URL.Query()["stopword"]; len(stops) > 0 {
		cat.AddStopwords(stops)
	}

	var terms []catalog.TermCount
	if n := parseInt(r.URL.Query().Get("n"), 0); n > 0 {
		terms = cat.MostCommonTerms(n)
	} else {
		terms = cat.TermFrequencies()
	}

	respondJSON(w, http.StatusOK, TermsResponse{
		ConversationID: rec.ID,
		Vocabulary:     cat.VocabularySize(),
		Terms:          terms,
	})
}

// RunAnalysis handles POST /api/conversations/{id}/analyze - runs the
// full pipeline and stores the results as a run. Progress is broadcast
// over the websocket feed while the similarity matrix builds.
func (h *APIHandlers) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get conversation", err)
		return
	}

	var req AnalyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse request body", err)
			return
		}
	}

	cfg := h.config.Analysis
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid analysis config", err)
		return
	}

	analyzer, err := engine.NewAnalyzerFromRows(rec.Rows, cfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to build analyzer", err)
		return
	}
	if req.UseDefaultStopwords || h.config.Features.DefaultStopwords {
		analyzer.AddStopwords(catalog.DefaultStopwords)
	}
	analyzer.AddStopwords(req.Stopwords)

	if h.hub != nil && h.config.Features.ProgressBroadcast {
		convID := rec.ID
		analyzer.SetProgress(func(done, total int) {
			// Throttle to ~5% steps so large matrices don't flood the feed.
			step := total / 20
			if step < 1 {
				step = 1
			}
			if done%step == 0 || done == total {
				h.hub.Broadcast(ProgressEvent{
					Type:           "progress",
					ConversationID: convID,
					Done:           done,
					Total:          total,
				})
			}
		})
	}

	ctx := r.Context()
	sim, err := analyzer.Similarity(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "analysis failed", err)
		return
	}
	table, err := analyzer.AllTopicRecurrences(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "recurrence computation failed", err)
		return
	}
	groupedSpeaker, err := analyzer.GroupedRecurrence(ctx, types.GroupBySpeaker, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "grouped recurrence failed", err)
		return
	}
	groupedGroup, err := analyzer.GroupedRecurrence(ctx, types.GroupByGroup, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "grouped recurrence failed", err)
		return
	}

	run := &storage.RunRecord{
		ID:             generateID("run"),
		ConversationID: rec.ID,
		ProfileName:    req.ProfileName,
		Config:         cfg,
		Stopwords:      analyzer.Stopwords(),
		Results: storage.ResultSet{
			Similarity:     sim.Rows(),
			Recurrence:     table,
			GroupedSpeaker: groupedSpeaker,
			GroupedGroup:   groupedGroup,
		},
	}
	if err := h.store.SaveRun(ctx, run); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save run", err)
		return
	}

	if h.hub != nil && h.config.Features.ProgressBroadcast {
		h.hub.Broadcast(ProgressEvent{
			Type:           "complete",
			ConversationID: rec.ID,
			RunID:          run.ID,
			Done:           sim.Size(),
			Total:          sim.Size(),
		})
	}

	respondJSON(w, http.StatusCreated, AnalyzeResponse{
		RunID:          run.ID,
		ConversationID: rec.ID,
		Utterances:     sim.Size(),
		KeyTerms:       analyzer.KeyTerms(),
		Config:         cfg,
		CreatedAt:      run.CreatedAt,
	})
}

// GetRun handles GET /api/runs/{id} - the full stored run record.
func (h *APIHandlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/conversations/{id}/runs.
func (h *APIHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	opts := storage.ListOptions{
		Page:      parseInt(r.URL.Query().Get("page"), 1),
		Limit:     parseInt(r.URL.Query().Get("limit"), 10),
		SortOrder: r.URL.Query().Get("sort_order"),
	}

	result, err := h.store.ListRuns(r.Context(), id, opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetSimilarity handles GET /api/runs/{id}/similarity. Query parameters
// threshold (zero out entries below the cutoff), from and to (window of
// utterance indexes) shape the presentation; the stored matrix is never
// modified.
func (h *APIHandlers) GetSimilarity(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	values := run.Results.Similarity
	n := len(values)

	threshold := 0.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid threshold", err)
			return
		}
		threshold = t
	}

	m := types.NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, values[i][j])
		}
	}
	out, err := engine.ApplyThreshold(m, threshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid threshold", err)
		return
	}

	from := parseInt(r.URL.Query().Get("from"), 0)
	to := parseInt(r.URL.Query().Get("to"), n)
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from > to {
		from = to
	}

	window := make([][]float64, 0, to-from)
	for i := from; i < to; i++ {
		window = append(window, out[i][from:to])
	}

	respondJSON(w, http.StatusOK, SimilarityResponse{
		RunID:     run.ID,
		Size:      to - from,
		Offset:    from,
		Threshold: threshold,
		Values:    window,
	})
}

// GetRecurrence handles GET /api/runs/{id}/recurrence - the long-form
// recurrence table, optionally filtered by axis values.
func (h *APIHandlers) GetRecurrence(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	scale := types.TimeScale(r.URL.Query().Get("time_scale"))
	dir := types.Direction(r.URL.Query().Get("direction"))
	rel := types.SpeakerRelation(r.URL.Query().Get("speaker_relation"))

	rows := run.Results.Recurrence
	if scale != "" || dir != "" || rel != "" {
		filtered := make(types.RecurrenceTable, 0, len(rows))
		for _, row := range rows {
			if scale != "" && row.TimeScale != scale {
				continue
			}
			if dir != "" && row.Direction != dir {
				continue
			}
			if rel != "" && row.SpeakerRelation != rel {
				continue
			}
			filtered = append(filtered, row)
		}
		rows = filtered
	}

	respondJSON(w, http.StatusOK, RecurrenceResponse{
		RunID: run.ID,
		Rows:  rows,
	})
}

// GetGrouped handles GET /api/runs/{id}/grouped. Query parameters:
// attribute (speaker or group, default speaker) and mode (raw,
// normalized or percentage, default raw). Normalized and percentage
// views are derived from the stored raw matrix.
func (h *APIHandlers) GetGrouped(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	attribute := r.URL.Query().Get("attribute")
	if attribute == "" {
		attribute = string(types.GroupBySpeaker)
	}

	var matrix *types.GroupedMatrix
	switch types.GroupingAttribute(attribute) {
	case types.GroupBySpeaker:
		matrix = run.Results.GroupedSpeaker
	case types.GroupByGroup:
		matrix = run.Results.GroupedGroup
	default:
		respondError(w, http.StatusBadRequest, "invalid grouping attribute", nil)
		return
	}
	if matrix == nil {
		respondError(w, http.StatusNotFound, "grouped matrix not available for this run", nil)
		return
	}

	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", "raw":
		mode = "raw"
	case "normalized":
		matrix = recurrence.Normalize(matrix)
	case "percentage":
		matrix = recurrence.Percentage(matrix)
	default:
		respondError(w, http.StatusBadRequest, "invalid mode", nil)
		return
	}

	respondJSON(w, http.StatusOK, GroupedResponse{
		RunID:     run.ID,
		Attribute: attribute,
		Mode:      mode,
		Matrix:    matrix,
	})
}

// loadRun fetches the run named by the path, writing the error response
// itself when the lookup fails.
func (h *APIHandlers) loadRun(w http.ResponseWriter, r *http.Request) (*storage.RunRecord, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "run ID is required", nil)
		return nil, false
	}

	run, err := h.store.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found", err)
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get run", err)
		return nil, false
	}
	return run, true
}

// Helper functions

// parseInt parses an integer from a string, returning defaultValue if
// parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; log and move on.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}

// generateID generates a prefixed short identifier, e.g. conv:1a2b3c4d.
func generateID(kind string) string {
	return fmt.Sprintf("%s:%s", kind, uuid.New().String()[:8])
}
