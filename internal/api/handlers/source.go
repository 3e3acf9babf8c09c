package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/luminara-health/copilot/internal/api"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/pagination"
)

type SourceStore interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.KnowledgeSource, bool, error)
	Delete(ctx context.Context, id string) error
}

type ChunkCounter interface {
	CountBySource(ctx context.Context, sourceID string) (int, error)
}

type SourceHandler struct {
	sources SourceStore
	chunks  ChunkCounter
}

func NewSourceHandler(sources SourceStore, chunks ChunkCounter) *SourceHandler {
	return &SourceHandler{sources: sources, chunks: chunks}
}

type SourceResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Kind        string            `json:"kind"`
	CourseID    string            `json:"course_id,omitempty"`
	LessonID    string            `json:"lesson_id,omitempty"`
	IsPublic    bool              `json:"is_public"`
	Language    string            `json:"language,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

type SourceDetailResponse struct {
	SourceResponse
	ChunkCount int    `json:"chunk_count"`
	Ingestion  string `json:"ingestion"`
}

func sourceToResponse(s *domain.KnowledgeSource) SourceResponse {
	return SourceResponse{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Kind:        string(s.Kind),
		CourseID:    s.CourseID,
		LessonID:    s.LessonID,
		IsPublic:    s.IsPublic,
		Language:    s.Language,
		Metadata:    s.Metadata,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /sources with cursor pagination
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	sources, hasMore, err := h.sources.ListWithCursor(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	page := pagination.PageResult[SourceResponse]{
		Items:   make([]SourceResponse, 0, len(sources)),
		HasMore: hasMore,
	}
	for _, s := range sources {
		page.Items = append(page.Items, sourceToResponse(s))
	}
	if hasMore && len(sources) > 0 {
		last := sources[len(sources)-1]
		page.Cursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	api.Success(w, http.StatusOK, page)
}

// Get handles GET /sources/{id}, reporting chunk count and whether the
// ingestion completed.
func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	source, err := h.sources.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	count, err := h.chunks.CountBySource(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	ingestion := "complete"
	if count == 0 {
		ingestion = "partial"
	}

	api.Success(w, http.StatusOK, SourceDetailResponse{
		SourceResponse: sourceToResponse(source),
		ChunkCount:     count,
		Ingestion:      ingestion,
	})
}

// Delete handles DELETE /sources/{id}, the operator path for clearing
// partially ingested sources.
func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.sources.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
