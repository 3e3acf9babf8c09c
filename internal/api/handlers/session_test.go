package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/luminara-health/copilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

func TestSessionHandler_Create_Success(t *testing.T) {
	mockStore := new(MockSessionStore)
	handler := NewSessionHandler(mockStore)

	mockStore.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *domain.ChatSession) bool {
		return s.ID != "" && s.Title == "Campaign questions"
	})).Return(nil)

	body := `{"title":"Campaign questions"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "Campaign questions", data["title"])
	mockStore.AssertExpectations(t)
}

func TestSessionHandler_Create_DefaultTitle(t *testing.T) {
	mockStore := new(MockSessionStore)
	handler := NewSessionHandler(mockStore)

	mockStore.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *domain.ChatSession) bool {
		return s.Title == "Untitled session"
	})).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockStore.AssertExpectations(t)
}

func TestSessionHandler_Create_InvalidJSON(t *testing.T) {
	handler := NewSessionHandler(new(MockSessionStore))

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{invalid`)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_Get_Success(t *testing.T) {
	mockStore := new(MockSessionStore)
	handler := NewSessionHandler(mockStore)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := &domain.ChatSession{ID: "sess-1", Title: "Questions", CreatedAt: now}
	messages := []*domain.ChatMessage{
		{ID: "m-1", SessionID: "sess-1", Role: domain.MessageRoleUser, Content: "When?", CreatedAt: now},
		{ID: "m-2", SessionID: "sess-1", Role: domain.MessageRoleAssistant, Content: "In March [Source 1].", Citations: []domain.Citation{{Position: 1, SourceID: "src-1"}}, CreatedAt: now},
	}
	mockStore.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	mockStore.On("ListMessages", mock.Anything, "sess-1").Return(messages, nil)

	w := httptest.NewRecorder()
	handler.Get(w, requestWithID(http.MethodGet, "/sessions/sess-1", "sess-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	msgs := data["messages"].([]interface{})
	require.Len(t, msgs, 2)
	second := msgs[1].(map[string]interface{})
	assert.Equal(t, "assistant", second["role"])
	assert.Len(t, second["citations"], 1)
	mockStore.AssertExpectations(t)
}

func TestSessionHandler_Get_NotFound(t *testing.T) {
	mockStore := new(MockSessionStore)
	handler := NewSessionHandler(mockStore)

	mockStore.On("GetSession", mock.Anything, "sess-404").Return(nil, domain.ErrSessionNotFound)

	w := httptest.NewRecorder()
	handler.Get(w, requestWithID(http.MethodGet, "/sessions/sess-404", "sess-404"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
