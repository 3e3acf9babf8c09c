package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/luminara-health/copilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSourceRepository is a mock implementation of SourceWriteRepository
type MockSourceRepository struct {
	mock.Mock
}

func (m *MockSourceRepository) Create(ctx context.Context, source *domain.KnowledgeSource) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

// MockTranscriptRepository is a mock implementation of TranscriptRepository
type MockTranscriptRepository struct {
	mock.Mock
}

func (m *MockTranscriptRepository) Save(ctx context.Context, record *domain.TranscriptRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockChunkRepository is a mock implementation of ChunkWriteRepository
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockTextArchiver is a mock implementation of TextArchiver
type MockTextArchiver struct {
	mock.Mock
}

func (m *MockTextArchiver) ArchiveSourceText(ctx context.Context, sourceID, text string) error {
	args := m.Called(ctx, sourceID, text)
	return args.Error(0)
}

func vectorsFor(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i), 0.5}
	}
	return out
}

func TestIngest_Success(t *testing.T) {
	sources := new(MockSourceRepository)
	transcripts := new(MockTranscriptRepository)
	chunks := new(MockChunkRepository)
	embedder := new(MockEmbeddingClient)

	svc := NewIngestServiceWithConfig(sources, transcripts, chunks, embedder, nil, ChunkConfig{Size: 1500, Overlap: 200})

	text := strings.Repeat("a", 3200)

	sources.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.KnowledgeSource) bool {
		return s.Title == "Laser safety" && s.Kind == domain.SourceKindLesson && s.CourseID == "course-1"
	})).Return(nil)

	embedder.On("EmbedBatch", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 3
	})).Return(vectorsFor([]string{"a", "b", "c"}), nil).Once()

	chunks.On("InsertChunks", mock.Anything, mock.MatchedBy(func(entries []domain.KnowledgeChunk) bool {
		if len(entries) != 3 {
			return false
		}
		for i, e := range entries {
			if e.ChunkIndex != i || e.SourceID == "" || len(e.Embedding) == 0 {
				return false
			}
		}
		return true
	})).Return(nil)

	result, err := svc.Ingest(context.Background(), IngestInput{
		Title:    "Laser safety",
		Kind:     domain.SourceKindLesson,
		CourseID: "course-1",
		Text:     text,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.SourceID)
	assert.Equal(t, 3, result.ChunkCount)

	sources.AssertExpectations(t)
	chunks.AssertExpectations(t)
	embedder.AssertExpectations(t)
	transcripts.AssertNotCalled(t, "Save")
}

func TestIngest_EmbeddingNotConfigured(t *testing.T) {
	sources := new(MockSourceRepository)

	svc := NewIngestService(sources, new(MockTranscriptRepository), new(MockChunkRepository), nil)

	_, err := svc.Ingest(context.Background(), IngestInput{Title: "Anything", Text: "content"})

	assert.ErrorIs(t, err, domain.ErrEmbeddingNotConfigured)
	sources.AssertNotCalled(t, "Create")
}

func TestIngest_ValidationBeforeWrites(t *testing.T) {
	sources := new(MockSourceRepository)
	embedder := new(MockEmbeddingClient)
	svc := NewIngestService(sources, new(MockTranscriptRepository), new(MockChunkRepository), embedder)

	_, err := svc.Ingest(context.Background(), IngestInput{Text: "content"})
	assert.ErrorIs(t, err, domain.ErrMissingTitle)

	_, err = svc.Ingest(context.Background(), IngestInput{Title: "No body"})
	assert.ErrorIs(t, err, domain.ErrMissingText)

	sources.AssertNotCalled(t, "Create")
	embedder.AssertNotCalled(t, "EmbedBatch")
}

func TestIngest_BadChunkConfigHasNoSideEffects(t *testing.T) {
	sources := new(MockSourceRepository)
	embedder := new(MockEmbeddingClient)
	svc := NewIngestServiceWithConfig(sources, new(MockTranscriptRepository), new(MockChunkRepository), embedder, nil, ChunkConfig{Size: 100, Overlap: 100})

	_, err := svc.Ingest(context.Background(), IngestInput{Title: "Bad config", Text: "content"})

	assert.ErrorIs(t, err, domain.ErrInvalidChunkParams)
	sources.AssertNotCalled(t, "Create")
	embedder.AssertNotCalled(t, "EmbedBatch")
}

func TestIngest_TranscriptSavedWithWordCount(t *testing.T) {
	sources := new(MockSourceRepository)
	transcripts := new(MockTranscriptRepository)
	chunks := new(MockChunkRepository)
	embedder := new(MockEmbeddingClient)

	svc := NewIngestService(sources, transcripts, chunks, embedder)

	sources.On("Create", mock.Anything, mock.Anything).Return(nil)
	transcripts.On("Save", mock.Anything, mock.MatchedBy(func(r *domain.TranscriptRecord) bool {
		return r.WordCount == 5 && r.Language == "en" && len(r.Segments) == 1
	})).Return(nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(vectorsFor([]string{"x"}), nil)
	chunks.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Ingest(context.Background(), IngestInput{
		Title: "Consult notes",
		Transcript: &TranscriptInput{
			Text:     "five words are in here",
			Language: "en",
			Segments: []domain.TranscriptSegment{{Start: 0, End: 2.5, Text: "five words"}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
	transcripts.AssertExpectations(t)
}

func TestIngest_EmbeddingFailureLeavesZeroChunkSource(t *testing.T) {
	sources := new(MockSourceRepository)
	chunks := new(MockChunkRepository)
	embedder := new(MockEmbeddingClient)

	svc := NewIngestService(sources, new(MockTranscriptRepository), chunks, embedder)

	sources.On("Create", mock.Anything, mock.Anything).Return(nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := svc.Ingest(context.Background(), IngestInput{Title: "Doomed", Text: "content"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeEmbedding, domainErr.Code)
	assert.Contains(t, err.Error(), "zero chunks")

	// The source row was already committed; no compensating rollback happens.
	sources.AssertCalled(t, "Create", mock.Anything, mock.Anything)
	chunks.AssertNotCalled(t, "InsertChunks")
}

func TestIngest_ChunkInsertFailure(t *testing.T) {
	sources := new(MockSourceRepository)
	chunks := new(MockChunkRepository)
	embedder := new(MockEmbeddingClient)

	svc := NewIngestService(sources, new(MockTranscriptRepository), chunks, embedder)

	sources.On("Create", mock.Anything, mock.Anything).Return(nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(vectorsFor([]string{"x"}), nil)
	chunks.On("InsertChunks", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := svc.Ingest(context.Background(), IngestInput{Title: "Doomed", Text: "content"})

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeStore, domainErr.Code)
}

func TestIngest_ArchiveFailureDoesNotFailIngestion(t *testing.T) {
	sources := new(MockSourceRepository)
	chunks := new(MockChunkRepository)
	embedder := new(MockEmbeddingClient)
	archiver := new(MockTextArchiver)

	svc := NewIngestServiceWithConfig(sources, new(MockTranscriptRepository), chunks, embedder, archiver, DefaultChunkConfig())

	sources.On("Create", mock.Anything, mock.Anything).Return(nil)
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(vectorsFor([]string{"x"}), nil)
	chunks.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)
	archiver.On("ArchiveSourceText", mock.Anything, mock.Anything, "content").Return(errors.New("bucket gone"))

	result, err := svc.Ingest(context.Background(), IngestInput{Title: "Archived", Text: "content"})

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
	archiver.AssertExpectations(t)
}
