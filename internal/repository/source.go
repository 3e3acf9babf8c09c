package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminara-health/copilot/internal/domain"
	"github.com/luminara-health/copilot/internal/pagination"
)

// SourceRepository handles persistence of knowledge sources.
type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

func (r *SourceRepository) Create(ctx context.Context, s *domain.KnowledgeSource) error {
	var metadata []byte
	if len(s.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(s.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_sources
			(id, title, description, kind, course_id, lesson_id, is_public, language, created_by, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.Title, s.Description, s.Kind,
		nullableString(s.CourseID), nullableString(s.LessonID),
		s.IsPublic, nullableString(s.Language), nullableString(s.CreatedBy),
		metadata, s.CreatedAt,
	)
	return err
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, title, description, kind, course_id, lesson_id, is_public, language, created_by, metadata, created_at
		 FROM knowledge_sources WHERE id = $1`,
		id,
	)

	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return source, nil
}

// ListWithCursor returns up to limit sources ordered by recency, with a
// has-more flag for cursor pagination.
func (r *SourceRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.KnowledgeSource, bool, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, description, kind, course_id, lesson_id, is_public, language, created_by, metadata, created_at
			 FROM knowledge_sources
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, description, kind, course_id, lesson_id, is_public, language, created_by, metadata, created_at
			 FROM knowledge_sources
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var sources []*domain.KnowledgeSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, false, err
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(sources) > limit
	if hasMore {
		sources = sources[:limit]
	}
	return sources, hasMore, nil
}

// ListZeroChunk returns IDs of sources created before olderThan that have no
// chunks, the recognized partial-ingestion state.
func (r *SourceRepository) ListZeroChunk(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT s.id
		 FROM knowledge_sources s
		 LEFT JOIN knowledge_chunks c ON c.source_id = s.id
		 WHERE s.created_at < $1
		 GROUP BY s.id
		 HAVING COUNT(c.id) = 0
		 ORDER BY MIN(s.created_at)
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a source; transcripts, chunks and archived text references
// go with it via ON DELETE CASCADE.
func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_sources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

func scanSource(row pgx.Row) (*domain.KnowledgeSource, error) {
	var s domain.KnowledgeSource
	var courseID, lessonID, language, createdBy *string
	var metadata []byte

	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Kind,
		&courseID, &lessonID, &s.IsPublic, &language, &createdBy,
		&metadata, &s.CreatedAt)
	if err != nil {
		return nil, err
	}

	if courseID != nil {
		s.CourseID = *courseID
	}
	if lessonID != nil {
		s.LessonID = *lessonID
	}
	if language != nil {
		s.Language = *language
	}
	if createdBy != nil {
		s.CreatedBy = *createdBy
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
