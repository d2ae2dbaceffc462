package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags a failure of the question-answering pipeline so callers can
// react to it without string matching.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindDocumentNotFound     ErrorKind = "DOCUMENT_NOT_FOUND"
	KindAnalysisNotFound     ErrorKind = "ANALYSIS_NOT_FOUND"
	KindConversationNotFound ErrorKind = "CONVERSATION_NOT_FOUND"
	KindConversationExists   ErrorKind = "CONVERSATION_EXISTS"
	KindEmbeddingFailure     ErrorKind = "EMBEDDING_FAILURE"
	KindGenerationFailure    ErrorKind = "GENERATION_FAILURE"
	KindMalformedVector      ErrorKind = "MALFORMED_VECTOR"
	KindInvalidInput         ErrorKind = "INVALID_INPUT"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Kind    ErrorKind
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

// Is reports whether target is a DomainError with the same code, kind and message.
// This lets errors.Is match a sentinel even after it was wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind && e.Message == t.Message
}

// Wrap returns a copy of the error carrying err as its cause.
func (e *DomainError) Wrap(err error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Kind:    e.Kind,
		Message: e.Message,
		Err:     err,
	}
}

// NewDomainError creates a new DomainError
func NewDomainError(code string, kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code string, kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of the first DomainError in err's chain.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNone
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, KindDocumentNotFound, "document not found")
	ErrAnalysisNotFound     = NewDomainError(ErrCodeNotFound, KindAnalysisNotFound, "document has no completed analysis, analyze it first")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, KindConversationNotFound, "conversation not found")
)

// Already exists errors
var (
	ErrConversationAlreadyExists = NewDomainError(ErrCodeAlreadyExists, KindConversationExists, "conversation already exists")
)

// Upstream capability errors
var (
	ErrEmbeddingFailure  = NewDomainError(ErrCodeUpstream, KindEmbeddingFailure, "embedding generation failed")
	ErrGenerationFailure = NewDomainError(ErrCodeUpstream, KindGenerationFailure, "answer generation failed")
)

// Validation errors
var (
	ErrMalformedVector      = NewDomainError(ErrCodeValidation, KindMalformedVector, "malformed embedding vector")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, KindInvalidInput, "missing required field")
	ErrInvalidRole          = NewDomainError(ErrCodeValidation, KindInvalidInput, "invalid message role")
)
