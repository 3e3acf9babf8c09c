package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeEmbedding        = "EMBEDDING_ERROR"
	ErrCodeGeneration       = "GENERATION_ERROR"
	ErrCodeStore            = "STORE_ERROR"
	ErrCodePartialIngestion = "PARTIAL_INGESTION"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingTitle       = NewDomainError(ErrCodeValidation, "source title is required")
	ErrMissingText        = NewDomainError(ErrCodeValidation, "source text or transcript is required")
	ErrEmptyQuery         = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrNegativeTopK       = NewDomainError(ErrCodeValidation, "top_k cannot be negative")
	ErrInvalidChunkParams = NewDomainError(ErrCodeValidation, "chunk overlap must be smaller than chunk size")
)

// Configuration errors
var (
	ErrEmbeddingNotConfigured  = NewDomainError(ErrCodeConfiguration, "embedding capability is not configured")
	ErrGenerationNotConfigured = NewDomainError(ErrCodeConfiguration, "generation capability is not configured")
)

// Not found errors
var (
	ErrSourceNotFound  = NewDomainError(ErrCodeNotFound, "knowledge source not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "chat session not found")
)

// Ingestion state errors
var (
	// ErrPartialIngestion marks a source that exists with zero chunks after a
	// failed ingestion attempt. Such sources are retried or deleted, never
	// silently served.
	ErrPartialIngestion = NewDomainError(ErrCodePartialIngestion, "source exists but has no chunks; re-ingest or delete it")
)
