package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func TestIngestHandler_Ingest_Success(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	mockSvc.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.Title == "Lesson 3" && input.Text == "Some lesson text"
	})).Return(&service.IngestResult{SourceID: "src-1", ChunkCount: 3}, nil)

	body := `{"source":{"title":"Lesson 3","kind":"lesson"},"text":"Some lesson text"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "src-1", data["source_id"])
	assert.Equal(t, float64(3), data["chunk_count"])
	mockSvc.AssertExpectations(t)
}

func TestIngestHandler_Ingest_TranscriptSegments(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	mockSvc.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.Transcript != nil &&
			input.Transcript.Text == "spoken words" &&
			len(input.Transcript.Segments) == 2 &&
			input.Transcript.Segments[1].Start == 1.5
	})).Return(&service.IngestResult{SourceID: "src-2", ChunkCount: 1}, nil)

	body := `{"source":{"title":"Webinar"},"transcript":"spoken words","segments":[{"start":0,"end":1.5,"text":"spoken"},{"start":1.5,"end":3,"text":"words"}]}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestIngestHandler_Ingest_InvalidJSON(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(`{invalid`)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestIngestHandler_Ingest_MissingTitle(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	body := `{"source":{"title":"  "},"text":"content"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")
	mockSvc.AssertNotCalled(t, "Ingest")
}

func TestIngestHandler_Ingest_MissingText(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	body := `{"source":{"title":"Lesson 3"}}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "text or transcript")
	mockSvc.AssertNotCalled(t, "Ingest")
}

func TestIngestHandler_Ingest_EmbedderNotConfigured(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	mockSvc.On("Ingest", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "embedding client not configured", domain.ErrEmbeddingNotConfigured))

	body := `{"source":{"title":"Lesson 3"},"text":"content"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	mockSvc.AssertExpectations(t)
}
