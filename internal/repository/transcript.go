package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminara-health/copilot/internal/domain"
)

// TranscriptRepository handles persistence of source transcripts.
type TranscriptRepository struct {
	db dbtx
}

func NewTranscriptRepository(pool *pgxpool.Pool) *TranscriptRepository {
	return &TranscriptRepository{db: pool}
}

func (r *TranscriptRepository) Save(ctx context.Context, record *domain.TranscriptRecord) error {
	var segments []byte
	if len(record.Segments) > 0 {
		var err error
		segments, err = json.Marshal(record.Segments)
		if err != nil {
			return err
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO transcripts (id, source_id, text, language, segments, word_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.SourceID, record.Text,
		nullableString(record.Language), segments, record.WordCount, record.CreatedAt,
	)
	return err
}

func (r *TranscriptRepository) GetBySource(ctx context.Context, sourceID string) (*domain.TranscriptRecord, error) {
	var record domain.TranscriptRecord
	var language *string
	var segments []byte

	err := r.db.QueryRow(ctx,
		`SELECT id, source_id, text, language, segments, word_count, created_at
		 FROM transcripts WHERE source_id = $1`,
		sourceID,
	).Scan(&record.ID, &record.SourceID, &record.Text, &language, &segments, &record.WordCount, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if language != nil {
		record.Language = *language
	}
	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &record.Segments); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
