package domain

import (
	"errors"
	"fmt"
)

// Collection errors. Wrapped errors carry context; match with errors.Is.
var (
	ErrNotFound          = errors.New("collection not found")
	ErrSlugExists        = errors.New("collection slug already exists")
	ErrCycleDetected     = errors.New("collection hierarchy would contain a cycle")
	ErrItemAlreadyExists = errors.New("item already exists in collection")
	ErrItemNotFound      = errors.New("item not found in collection")
	ErrItemLimitExceeded = errors.New("collection item limit exceeded")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrValidation        = errors.New("validation error")
)

// Errors raised before the language model is called.
var (
	ErrDatabaseNotFound    = errors.New("database not found")
	ErrDatabaseUnavailable = errors.New("failed to connect to database")
)

// AI errors all match ErrAI.
var (
	ErrAI          = errors.New("ai service error")
	ErrLLMConfig   = fmt.Errorf("%w: invalid llm configuration", ErrAI)
	ErrLLMResponse = fmt.Errorf("%w: invalid llm response", ErrAI)
	ErrLLMTimeout  = fmt.Errorf("%w: llm request timed out", ErrAI)
	ErrSQLSecurity = fmt.Errorf("%w: generated sql rejected", ErrAI)
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
