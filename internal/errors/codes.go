// Package errors provides structured error handling for notevec.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Document and chunking errors
//   - 3XX: Embedding provider errors
//   - 4XX: Storage errors
//   - 5XX: Synchronization errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryChunking indicates document splitting errors.
	CategoryChunking Category = "CHUNKING"
	// CategoryEmbedding indicates embedding provider errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryStorage indicates vector store errors.
	CategoryStorage Category = "STORAGE"
	// CategorySync indicates incremental update errors.
	CategorySync Category = "SYNC"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Document and chunking errors (200-299)
	ErrCodeEmptyDocument  = "ERR_201_EMPTY_DOCUMENT"
	ErrCodeChunkingFailed = "ERR_202_CHUNKING_FAILED"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed     = "ERR_301_EMBEDDING_FAILED"
	ErrCodeEmbedderUnavailable = "ERR_302_EMBEDDER_UNAVAILABLE"
	ErrCodeDimensionMismatch   = "ERR_303_DIMENSION_MISMATCH"

	// Storage errors (400-499)
	ErrCodeStorageFailed      = "ERR_401_STORAGE_FAILED"
	ErrCodeCollectionNotFound = "ERR_402_COLLECTION_NOT_FOUND"
	ErrCodeCollectionLocked   = "ERR_403_COLLECTION_LOCKED"

	// Sync errors (500-599)
	ErrCodeIncompatibleCollection = "ERR_501_INCOMPATIBLE_COLLECTION"
	ErrCodeSyncFailed             = "ERR_502_SYNC_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategorySync
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryChunking
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryStorage
	default:
		return CategorySync
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIncompatibleCollection, ErrCodeStorageFailed, ErrCodeCollectionLocked:
		return SeverityFatal
	case ErrCodeEmptyDocument, ErrCodeChunkingFailed, ErrCodeEmbeddingFailed:
		// Per-document and per-chunk failures are collected, not fatal.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeEmbedderUnavailable:
		return true
	default:
		return false
	}
}
