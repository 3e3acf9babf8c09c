package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerOutput), args.Error(1)
}

type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Retrieve(ctx context.Context, queryText string, topK int, filters service.SearchFilters) ([]*service.SearchMatch, error) {
	args := m.Called(ctx, queryText, topK, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchMatch), args.Error(1)
}

func TestQueryHandler_Query_Success(t *testing.T) {
	mockAnswers := new(MockAnswerService)
	handler := NewQueryHandler(mockAnswers, new(MockRetrievalService))

	out := &service.AnswerOutput{
		Answer: "The campaign runs in March [Source 1].",
		Citations: []domain.Citation{
			{Position: 1, SourceID: "src-1", ChunkID: "c-1", ChunkIndex: 0, Title: "Campaign plan", Score: 0.92, Content: "runs in March"},
		},
	}
	mockAnswers.On("Answer", mock.Anything, mock.MatchedBy(func(input service.AnswerInput) bool {
		return input.Query == "When does the campaign run?" && input.TopK == 4 && input.Filters.CourseID == "course-7"
	})).Return(out, nil)

	body := `{"query":"When does the campaign run?","top_k":4,"filters":{"course_id":"course-7"}}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "The campaign runs in March [Source 1].", data["answer"])
	citations := data["citations"].([]interface{})
	require.Len(t, citations, 1)
	first := citations[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["position"])
	assert.Equal(t, "src-1", first["source_id"])
	mockAnswers.AssertExpectations(t)
}

func TestQueryHandler_Query_EmptyQuery(t *testing.T) {
	mockAnswers := new(MockAnswerService)
	handler := NewQueryHandler(mockAnswers, new(MockRetrievalService))

	body := `{"query":"   "}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockAnswers.AssertNotCalled(t, "Answer")
}

func TestQueryHandler_Query_SessionErrStillOK(t *testing.T) {
	mockAnswers := new(MockAnswerService)
	handler := NewQueryHandler(mockAnswers, new(MockRetrievalService))

	out := &service.AnswerOutput{
		Answer:     "An answer.",
		Citations:  []domain.Citation{},
		SessionErr: errors.New("session write failed"),
	}
	mockAnswers.On("Answer", mock.Anything, mock.Anything).Return(out, nil)

	body := `{"query":"anything","session_id":"sess-1"}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "An answer.")
}

func TestQueryHandler_Query_GenerationFailure(t *testing.T) {
	mockAnswers := new(MockAnswerService)
	handler := NewQueryHandler(mockAnswers, new(MockRetrievalService))

	mockAnswers.On("Answer", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeGeneration, "completion request failed", errors.New("upstream 500")))

	body := `{"query":"anything"}`
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Query(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	mockAnswers.AssertExpectations(t)
}

func TestQueryHandler_Search_Success(t *testing.T) {
	mockRetrieval := new(MockRetrievalService)
	handler := NewQueryHandler(new(MockAnswerService), mockRetrieval)

	matches := []*service.SearchMatch{
		{ChunkID: "c-1", SourceID: "src-1", ChunkIndex: 2, Title: "Plan", Content: "text", Score: 0.8},
	}
	mockRetrieval.On("Retrieve", mock.Anything, "plan", 3, service.SearchFilters{PublicOnly: true}).
		Return(matches, nil)

	body := `{"query":"plan","top_k":3,"filters":{"public_only":true}}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["matches"], 1)
	mockRetrieval.AssertExpectations(t)
}

func TestQueryHandler_Search_DefaultTopK(t *testing.T) {
	mockRetrieval := new(MockRetrievalService)
	handler := NewQueryHandler(new(MockAnswerService), mockRetrieval)

	mockRetrieval.On("Retrieve", mock.Anything, "plan", service.DefaultAnswerTopK, service.SearchFilters{}).
		Return([]*service.SearchMatch{}, nil)

	body := `{"query":"plan"}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRetrieval.AssertExpectations(t)
}

func TestQueryHandler_Search_EmptyQueryFromService(t *testing.T) {
	mockRetrieval := new(MockRetrievalService)
	handler := NewQueryHandler(new(MockAnswerService), mockRetrieval)

	mockRetrieval.On("Retrieve", mock.Anything, "", service.DefaultAnswerTopK, service.SearchFilters{}).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "query text cannot be empty", domain.ErrEmptyQuery))

	body := `{"query":""}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRetrieval.AssertExpectations(t)
}
