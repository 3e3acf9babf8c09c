package domain

import (
	"fmt"
	"time"
)

// MessageRole represents who produced a chat message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatSession groups an ordered sequence of messages.
type ChatSession struct {
	ID        string
	Title     string
	CreatedBy string
	CreatedAt time.Time
}

// Citation maps a numbered source label in an answer back to the retrieved
// chunk that grounded it. Position matches the "Source N" label used in the
// generation prompt, starting at 1.
type Citation struct {
	Position   int     `json:"position"`
	SourceID   string  `json:"source_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
}

// ChatMessage is one entry in a session. Assistant messages carry the ordered
// citation list used to ground the answer; user messages carry none.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      MessageRole
	Content   string
	Citations []Citation
	CreatedAt time.Time
}

// ValidateChatMessage validates a ChatMessage instance
func ValidateChatMessage(m *ChatMessage) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.SessionID == "" {
		return fmt.Errorf("message SessionID is required")
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	return nil
}

// isValidMessageRole checks if a MessageRole is valid
func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant:
		return true
	}
	return false
}
