package service

import (
	"context"
	"strings"

	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/telemetry"
)

// SearchFilters is the closed set of scoping predicates forwarded to the
// store. Enforcement of who may query what lives in the caller's
// authorization layer, not here.
type SearchFilters struct {
	SourceID   string
	CourseID   string
	LessonID   string
	PublicOnly bool
}

// SearchMatch is a chunk reference with a similarity score, valid for the
// lifetime of one query.
type SearchMatch struct {
	ChunkID    string
	SourceID   string
	ChunkIndex int
	Title      string
	Content    string
	Score      float32
}

// EmbeddingClient defines the interface for batched embedding generation
type EmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSearchRepository defines the repository interface for similarity search
type ChunkSearchRepository interface {
	SearchChunks(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*SearchMatch, error)
}

// RetrievalService embeds queries and runs scoped similarity search
type RetrievalService struct {
	embedder EmbeddingClient
	repo     ChunkSearchRepository
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedder EmbeddingClient, repo ChunkSearchRepository) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		repo:     repo,
	}
}

// Retrieve embeds queryText and returns the topK nearest chunks in the
// store's descending-score order, with no re-ranking. topK == 0 short-circuits
// to an empty result before any embedding call is made.
func (s *RetrievalService) Retrieve(ctx context.Context, queryText string, topK int, filters SearchFilters) ([]*SearchMatch, error) {
	if topK < 0 {
		return nil, domain.ErrNegativeTopK
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK == 0 {
		return []*SearchMatch{}, nil
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}

	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	vectors, err := s.embedder.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "failed to embed query", err)
	}

	matches, err := s.repo.SearchChunks(ctx, vectors[0], filters, topK)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "similarity search failed", err)
	}

	return matches, nil
}
