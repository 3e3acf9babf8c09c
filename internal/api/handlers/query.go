package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/luminara-health/copilot/internal/api"
	"github.com/luminara-health/copilot/internal/service"
)

type AnswerService interface {
	Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error)
}

type RetrievalService interface {
	Retrieve(ctx context.Context, queryText string, topK int, filters service.SearchFilters) ([]*service.SearchMatch, error)
}

type QueryHandler struct {
	answers   AnswerService
	retrieval RetrievalService
}

func NewQueryHandler(answers AnswerService, retrieval RetrievalService) *QueryHandler {
	return &QueryHandler{answers: answers, retrieval: retrieval}
}

type FiltersPayload struct {
	SourceID   string `json:"source_id"`
	CourseID   string `json:"course_id"`
	LessonID   string `json:"lesson_id"`
	PublicOnly bool   `json:"public_only"`
}

func (f FiltersPayload) toFilters() service.SearchFilters {
	return service.SearchFilters{
		SourceID:   f.SourceID,
		CourseID:   f.CourseID,
		LessonID:   f.LessonID,
		PublicOnly: f.PublicOnly,
	}
}

type QueryRequest struct {
	Query     string         `json:"query"`
	TopK      int            `json:"top_k"`
	Filters   FiltersPayload `json:"filters"`
	SessionID string         `json:"session_id"`
}

type CitationResponse struct {
	Position   int     `json:"position"`
	SourceID   string  `json:"source_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
}

type QueryResponse struct {
	Answer    string             `json:"answer"`
	Citations []CitationResponse `json:"citations"`
}

// Query handles POST /query: retrieval plus grounded answer generation.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.answers.Answer(r.Context(), service.AnswerInput{
		Query:     req.Query,
		TopK:      req.TopK,
		Filters:   req.Filters.toFilters(),
		SessionID: req.SessionID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	// The answer stands even when recording it to the session failed.
	if out.SessionErr != nil {
		log.Printf("query: failed to persist session messages (session: %s): %v", req.SessionID, out.SessionErr)
	}

	resp := QueryResponse{
		Answer:    out.Answer,
		Citations: make([]CitationResponse, 0, len(out.Citations)),
	}
	for _, c := range out.Citations {
		resp.Citations = append(resp.Citations, CitationResponse{
			Position:   c.Position,
			SourceID:   c.SourceID,
			ChunkIndex: c.ChunkIndex,
			Title:      c.Title,
			Score:      c.Score,
			Content:    c.Content,
		})
	}

	api.Success(w, http.StatusOK, resp)
}

type SearchRequest struct {
	Query   string         `json:"query"`
	TopK    int            `json:"top_k"`
	Filters FiltersPayload `json:"filters"`
}

type SearchMatchResponse struct {
	ChunkID    string  `json:"chunk_id"`
	SourceID   string  `json:"source_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

type SearchResponse struct {
	Matches []SearchMatchResponse `json:"matches"`
}

// Search handles POST /search: raw similarity search without generation.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = service.DefaultAnswerTopK
	}

	matches, err := h.retrieval.Retrieve(r.Context(), req.Query, topK, req.Filters.toFilters())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Matches: make([]SearchMatchResponse, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, SearchMatchResponse{
			ChunkID:    m.ChunkID,
			SourceID:   m.SourceID,
			ChunkIndex: m.ChunkIndex,
			Title:      m.Title,
			Content:    m.Content,
			Score:      m.Score,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
