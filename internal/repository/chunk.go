package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/service"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence and similarity search of embedded
// knowledge chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// InsertChunks writes a source's full chunk set in one transaction. Either
// every chunk commits or none do.
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		var metadata []byte
		if len(c.Metadata) > 0 {
			metadata, err = json.Marshal(c.Metadata)
			if err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_chunks
				(id, source_id, chunk_index, content, tokens, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.SourceID, c.ChunkIndex, c.Content, c.Tokens,
			pgvector.NewVector(c.Embedding), metadata, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

// CountBySource returns the number of chunks persisted for a source.
// Zero for an existing source signals an incomplete ingestion.
func (r *ChunkRepository) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE source_id = $1`,
		sourceID,
	).Scan(&count)
	return count, err
}

// SearchChunks runs nearest-neighbor search over chunk embeddings, scoped by
// the given filters, returning matches in descending score order truncated
// to limit.
func (r *ChunkRepository) SearchChunks(ctx context.Context, embedding []float32, filters service.SearchFilters, limit int) ([]*service.SearchMatch, error) {
	if limit <= 0 {
		return []*service.SearchMatch{}, nil
	}

	query := `
		SELECT c.id, c.source_id, c.chunk_index, c.content, s.title,
		       1.0 / (1.0 + (c.embedding <=> $1)) AS score
		FROM knowledge_chunks c
		JOIN knowledge_sources s ON s.id = c.source_id`
	args := []any{pgvector.NewVector(embedding)}

	var conditions []string
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filters.SourceID != "" {
		addCondition("c.source_id = $%d", filters.SourceID)
	}
	if filters.CourseID != "" {
		addCondition("s.course_id = $%d", filters.CourseID)
	}
	if filters.LessonID != "" {
		addCondition("s.lesson_id = $%d", filters.LessonID)
	}
	if filters.PublicOnly {
		conditions = append(conditions, "s.is_public = TRUE")
	}

	for i, cond := range conditions {
		if i == 0 {
			query += "\n\t\tWHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	args = append(args, limit)
	query += fmt.Sprintf("\n\t\tORDER BY score DESC\n\t\tLIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*service.SearchMatch
	for rows.Next() {
		var m service.SearchMatch
		if err := rows.Scan(&m.ChunkID, &m.SourceID, &m.ChunkIndex, &m.Content, &m.Title, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
