package errors

import (
	"fmt"
)

// SyncError is the structured error type for notevec.
// It carries the code-derived category and severity so callers can decide
// between skip-and-report and abort without string matching.
type SyncError struct {
	// Code is the unique error code (e.g., "ERR_202_CHUNKING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Chunking, Embedding, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SyncError.
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SyncError) WithDetail(key, value string) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SyncError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SyncError from an existing error.
// The error's message becomes the SyncError message.
func Wrap(code string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ChunkingError creates an error for a document that cannot be split.
// The run skips the document and continues.
func ChunkingError(message string, cause error) *SyncError {
	return New(ErrCodeChunkingFailed, message, cause)
}

// EmbeddingError creates an error for a chunk or batch that cannot be
// embedded after retries. Recorded as failed, the run continues.
func EmbeddingError(message string, cause error) *SyncError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// StorageError creates an error for a failed store operation.
// Fatal for the current mutation step; prior successful steps are not
// rolled back.
func StorageError(message string, cause error) *SyncError {
	return New(ErrCodeStorageFailed, message, cause)
}

// IncompatibleError creates an error for a collection that cannot be
// incrementally updated and requires full recreation.
func IncompatibleError(message string) *SyncError {
	return New(ErrCodeIncompatibleCollection, message, nil)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SyncError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SyncError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SyncError.
// Returns empty string if not a SyncError.
func GetCode(err error) string {
	if se, ok := err.(*SyncError); ok {
		return se.Code
	}
	return ""
}
