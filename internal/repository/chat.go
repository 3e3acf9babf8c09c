package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminara-health/copilot/internal/domain"
)

// ChatRepository handles persistence of chat sessions and their messages.
type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, title, created_by, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.Title, nullableString(session.CreatedBy), session.CreatedAt,
	)
	return err
}

func (r *ChatRepository) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	var session domain.ChatSession
	var createdBy *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, created_by, created_at FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.Title, &createdBy, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if createdBy != nil {
		session.CreatedBy = *createdBy
	}
	return &session, nil
}

// AppendMessages writes a batch of messages to a session in one transaction,
// preserving their order.
func (r *ChatRepository) AppendMessages(ctx context.Context, sessionID string, messages []domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, m := range messages {
		if err := domain.ValidateChatMessage(&m); err != nil {
			return err
		}

		var citations []byte
		if len(m.Citations) > 0 {
			citations, err = json.Marshal(m.Citations)
			if err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO chat_messages (id, session_id, role, content, citations, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, sessionID, m.Role, m.Content, citations, m.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListMessages returns a session's messages in insertion order.
func (r *ChatRepository) ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, role, content, citations, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var citations []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				return nil, err
			}
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
