package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/luminara-health/copilot/internal/api"
	"github.com/luminara-health/copilot/internal/domain"
)

type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.ChatSession) error
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)
}

type SessionHandler struct {
	sessions SessionStore
}

func NewSessionHandler(sessions SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type CreateSessionRequest struct {
	Title     string `json:"title"`
	CreatedBy string `json:"created_by,omitempty"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

type MessageResponse struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Citations []domain.Citation `json:"citations,omitempty"`
	CreatedAt string            `json:"created_at"`
}

type SessionDetailResponse struct {
	SessionResponse
	Messages []MessageResponse `json:"messages"`
}

func sessionToResponse(s *domain.ChatSession) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		req.Title = "Untitled session"
	}

	session := &domain.ChatSession{
		ID:        uuid.NewString(),
		Title:     req.Title,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.sessions.CreateSession(r.Context(), session); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

// Get handles GET /sessions/{id}, returning the session with its full
// message history in insertion order.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	messages, err := h.sessions.ListMessages(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SessionDetailResponse{
		SessionResponse: sessionToResponse(session),
		Messages:        make([]MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Citations: m.Citations,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}

	api.Success(w, http.StatusOK, resp)
}
