package domain

import (
	"fmt"
	"time"
)

// SourceKind represents the kind of material a knowledge source was built from
type SourceKind string

const (
	SourceKindLesson  SourceKind = "lesson"
	SourceKindArticle SourceKind = "article"
	SourceKindManual  SourceKind = "manual"
)

// KnowledgeSource represents one ingested document. Sources are immutable:
// re-ingesting updated material creates a new source rather than editing
// an existing one in place.
type KnowledgeSource struct {
	ID          string
	Title       string
	Description string
	Kind        SourceKind
	CourseID    string
	LessonID    string
	IsPublic    bool
	Language    string
	CreatedBy   string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// NewKnowledgeSource creates a new KnowledgeSource instance
func NewKnowledgeSource(id, title, description string, kind SourceKind, createdAt time.Time) *KnowledgeSource {
	if kind == "" {
		kind = SourceKindArticle
	}
	return &KnowledgeSource{
		ID:          id,
		Title:       title,
		Description: description,
		Kind:        kind,
		CreatedAt:   createdAt,
	}
}

// ValidateKnowledgeSource validates a KnowledgeSource instance
func ValidateKnowledgeSource(s *KnowledgeSource) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("source ID is required")
	}

	if s.Title == "" {
		return fmt.Errorf("source Title is required")
	}

	if !isValidSourceKind(s.Kind) {
		return fmt.Errorf("source Kind is invalid: %s", s.Kind)
	}

	return nil
}

// isValidSourceKind checks if a SourceKind is valid
func isValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceKindLesson, SourceKindArticle, SourceKindManual:
		return true
	}
	return false
}
