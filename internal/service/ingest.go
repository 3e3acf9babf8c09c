package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/telemetry"
)

// SourceWriteRepository defines the repository interface for creating sources
type SourceWriteRepository interface {
	Create(ctx context.Context, source *domain.KnowledgeSource) error
}

// TranscriptRepository defines the repository interface for transcript persistence
type TranscriptRepository interface {
	Save(ctx context.Context, record *domain.TranscriptRecord) error
}

// ChunkWriteRepository defines the repository interface for bulk chunk persistence.
// InsertChunks is all-or-nothing: either every chunk of the batch is written
// or none are.
type ChunkWriteRepository interface {
	InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error
}

// TextArchiver stores raw source text in object storage
type TextArchiver interface {
	ArchiveSourceText(ctx context.Context, sourceID, text string) error
}

// IngestInput describes one document to ingest
type IngestInput struct {
	Title       string
	Description string
	Kind        domain.SourceKind
	CourseID    string
	LessonID    string
	IsPublic    bool
	Language    string
	CreatedBy   string
	Metadata    map[string]string

	// Text is the content to chunk and embed. When empty, the transcript
	// text is used instead. At least one of the two is required.
	Text       string
	Transcript *TranscriptInput
}

// TranscriptInput is an optional transcript payload accompanying an ingestion
type TranscriptInput struct {
	Text     string
	Language string
	Segments []domain.TranscriptSegment
}

// IngestResult reports what one ingestion pass wrote
type IngestResult struct {
	SourceID   string
	ChunkCount int
}

// IngestService turns one source document into a persisted, searchable set
// of chunks
type IngestService struct {
	sources     SourceWriteRepository
	transcripts TranscriptRepository
	chunks      ChunkWriteRepository
	embedder    EmbeddingClient
	archiver    TextArchiver
	chunkCfg    ChunkConfig
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	sources SourceWriteRepository,
	transcripts TranscriptRepository,
	chunks ChunkWriteRepository,
	embedder EmbeddingClient,
) *IngestService {
	return NewIngestServiceWithConfig(sources, transcripts, chunks, embedder, nil, DefaultChunkConfig())
}

// NewIngestServiceWithConfig creates a new IngestService with an optional
// archiver and explicit chunking configuration.
func NewIngestServiceWithConfig(
	sources SourceWriteRepository,
	transcripts TranscriptRepository,
	chunks ChunkWriteRepository,
	embedder EmbeddingClient,
	archiver TextArchiver,
	chunkCfg ChunkConfig,
) *IngestService {
	return &IngestService{
		sources:     sources,
		transcripts: transcripts,
		chunks:      chunks,
		embedder:    embedder,
		archiver:    archiver,
		chunkCfg:    chunkCfg,
	}
}

// Ingest validates input, creates the source row with its optional
// transcript, then chunks, embeds (one batch call for all chunks) and bulk
// persists. Validation and the embedding-capability check happen before any
// write. If embedding or the chunk insert fails after the source row was
// committed, the source remains with zero chunks: a recognized partial state
// that the sweeper or an operator delete resolves.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.ErrMissingTitle
	}

	rawText := input.Text
	if strings.TrimSpace(rawText) == "" && input.Transcript != nil {
		rawText = input.Transcript.Text
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, domain.ErrMissingText
	}

	// Chunking is deterministic and cheap, so run it before any write: a bad
	// chunk configuration must surface with no side effects.
	chunks, err := ChunkText(rawText, s.chunkCfg)
	if err != nil {
		return nil, err
	}

	sourceID := uuid.NewString()
	now := time.Now().UTC()

	source := &domain.KnowledgeSource{
		ID:          sourceID,
		Title:       input.Title,
		Description: input.Description,
		Kind:        input.Kind,
		CourseID:    input.CourseID,
		LessonID:    input.LessonID,
		IsPublic:    input.IsPublic,
		Language:    input.Language,
		CreatedBy:   input.CreatedBy,
		Metadata:    input.Metadata,
		CreatedAt:   now,
	}
	if source.Kind == "" {
		source.Kind = domain.SourceKindArticle
	}
	if err := domain.ValidateKnowledgeSource(source); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid source", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		SourceID:  sourceID,
		Operation: "ingest",
	})
	defer span.End()

	if err := s.sources.Create(ctx, source); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to create source", err)
	}

	if input.Transcript != nil && strings.TrimSpace(input.Transcript.Text) != "" {
		record := &domain.TranscriptRecord{
			ID:        uuid.NewString(),
			SourceID:  sourceID,
			Text:      input.Transcript.Text,
			Language:  input.Transcript.Language,
			Segments:  input.Transcript.Segments,
			WordCount: len(strings.Fields(input.Transcript.Text)),
			CreatedAt: now,
		}
		if err := s.transcripts.Save(ctx, record); err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to save transcript", err)
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			"failed to embed chunks; source "+sourceID+" remains with zero chunks", err)
	}

	entries := make([]domain.KnowledgeChunk, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.KnowledgeChunk{
			ID:         uuid.NewString(),
			SourceID:   sourceID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Tokens:     c.Tokens,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	if err := s.chunks.InsertChunks(ctx, entries); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore,
			"failed to persist chunks; source "+sourceID+" remains with zero chunks", err)
	}

	// Raw text archival is best-effort: the searchable state is already
	// committed, so an archive failure is logged, not returned.
	if s.archiver != nil {
		if err := s.archiver.ArchiveSourceText(ctx, sourceID, rawText); err != nil {
			log.Printf("ingest: failed to archive raw text for source %s: %v", sourceID, err)
		}
	}

	return &IngestResult{
		SourceID:   sourceID,
		ChunkCount: len(entries),
	}, nil
}
