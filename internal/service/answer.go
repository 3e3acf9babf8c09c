package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/telemetry"
)

// DefaultAnswerTopK bounds how many matches ground an answer when the caller
// does not say.
const DefaultAnswerTopK = 6

const noSourcesAnswer = "I could not find any relevant sources for this question in the knowledge base."

// GenerationClient defines the interface for grounded answer generation
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever defines the interface for scoped similarity retrieval
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, topK int, filters SearchFilters) ([]*SearchMatch, error)
}

// ChatMessageRepository defines the repository interface for session persistence
type ChatMessageRepository interface {
	AppendMessages(ctx context.Context, sessionID string, messages []domain.ChatMessage) error
}

// AnswerInput describes one grounded-answer request
type AnswerInput struct {
	Query     string
	TopK      int
	Filters   SearchFilters
	SessionID string
}

// AnswerOutput separates the primary answer from the session side-effect
// outcome: SessionErr reports a failed message append without invalidating
// the answer itself.
type AnswerOutput struct {
	Answer     string
	Citations  []domain.Citation
	SessionErr error
}

// AnswerService assembles a citation-numbered grounding prompt from retrieved
// chunks and invokes the generation capability
type AnswerService struct {
	retriever Retriever
	generator GenerationClient
	messages  ChatMessageRepository
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(retriever Retriever, generator GenerationClient, messages ChatMessageRepository) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		generator: generator,
		messages:  messages,
	}
}

// Answer retrieves grounding chunks for the query, generates an answer
// constrained to those chunks and returns it with a citation list whose
// positions agree 1:1 with the "Source N" labels in the prompt. When a
// session ID is supplied, the question and answer are appended to that
// session best-effort.
func (s *AnswerService) Answer(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	if s.generator == nil {
		return nil, domain.ErrGenerationNotConfigured
	}

	topK := input.TopK
	if topK <= 0 {
		topK = DefaultAnswerTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "AnswerService.Answer", telemetry.SpanAttributes{
		SessionID: input.SessionID,
		Operation: "answer",
	})
	defer span.End()

	matches, err := s.retriever.Retrieve(ctx, input.Query, topK, input.Filters)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &AnswerOutput{
		Citations: buildCitations(matches),
	}

	if len(matches) == 0 {
		// Nothing to ground on: skip the generation call rather than asking
		// the model to answer from an empty context.
		out.Answer = noSourcesAnswer
	} else {
		prompt := buildGroundingPrompt(input.Query, matches)
		answer, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeGeneration, "answer generation failed", err)
		}
		out.Answer = answer
	}

	if input.SessionID != "" && s.messages != nil {
		if err := s.recordExchange(ctx, input.SessionID, input.Query, out); err != nil {
			out.SessionErr = err
		}
	}

	return out, nil
}

func (s *AnswerService) recordExchange(ctx context.Context, sessionID, query string, out *AnswerOutput) error {
	now := time.Now().UTC()
	messages := []domain.ChatMessage{
		{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      domain.MessageRoleUser,
			Content:   query,
			CreatedAt: now,
		},
		{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      domain.MessageRoleAssistant,
			Content:   out.Answer,
			Citations: out.Citations,
			CreatedAt: now,
		},
	}
	return s.messages.AppendMessages(ctx, sessionID, messages)
}

// buildCitations maps matches to citations in order, positions starting at 1
// to match the prompt labels.
func buildCitations(matches []*SearchMatch) []domain.Citation {
	citations := make([]domain.Citation, len(matches))
	for i, m := range matches {
		citations[i] = domain.Citation{
			Position:   i + 1,
			SourceID:   m.SourceID,
			ChunkID:    m.ChunkID,
			ChunkIndex: m.ChunkIndex,
			Title:      m.Title,
			Score:      m.Score,
			Content:    m.Content,
		}
	}
	return citations
}

// buildGroundingPrompt concatenates numbered source blocks and instructs the
// model to answer only from them.
func buildGroundingPrompt(query string, matches []*SearchMatch) string {
	var sb strings.Builder

	sb.WriteString("You are a knowledge assistant for aesthetic clinic staff. ")
	sb.WriteString("Answer the question using only the numbered sources below. ")
	sb.WriteString("Reference sources by their numeric label, e.g. [Source 2]. ")
	sb.WriteString("If the sources do not contain the answer, say so instead of guessing.\n\n")

	for i, m := range matches {
		fmt.Fprintf(&sb, "Source %d: %s (score %.2f)\n%s\n\n", i+1, m.Title, m.Score, m.Content)
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)

	return sb.String()
}
