package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/luminara-health/copilot/internal/api"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/service"
)

type IngestService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type SourcePayload struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Kind        string            `json:"kind"`
	CourseID    string            `json:"course_id"`
	LessonID    string            `json:"lesson_id"`
	IsPublic    bool              `json:"is_public"`
	Language    string            `json:"language"`
	Metadata    map[string]string `json:"metadata"`
}

type SegmentPayload struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type IngestRequest struct {
	Source     SourcePayload    `json:"source"`
	Text       string           `json:"text"`
	Transcript string           `json:"transcript"`
	Segments   []SegmentPayload `json:"segments"`
}

type IngestResponse struct {
	SourceID   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingest handles POST /ingest
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Source.Title) == "" {
		api.Error(w, http.StatusBadRequest, "source.title is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.Transcript) == "" {
		api.Error(w, http.StatusBadRequest, "at least one of text or transcript is required")
		return
	}

	input := service.IngestInput{
		Title:       req.Source.Title,
		Description: req.Source.Description,
		Kind:        domain.SourceKind(req.Source.Kind),
		CourseID:    req.Source.CourseID,
		LessonID:    req.Source.LessonID,
		IsPublic:    req.Source.IsPublic,
		Language:    req.Source.Language,
		Metadata:    req.Source.Metadata,
		Text:        req.Text,
	}

	if strings.TrimSpace(req.Transcript) != "" {
		transcript := &service.TranscriptInput{
			Text:     req.Transcript,
			Language: req.Source.Language,
		}
		for _, seg := range req.Segments {
			transcript.Segments = append(transcript.Segments, domain.TranscriptSegment{
				Start: seg.Start,
				End:   seg.End,
				Text:  seg.Text,
			})
		}
		input.Transcript = transcript
	}

	result, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestResponse{
		SourceID:   result.SourceID,
		ChunkCount: result.ChunkCount,
	})
}
