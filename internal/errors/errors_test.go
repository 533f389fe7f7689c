package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"chunking", ErrCodeChunkingFailed, CategoryChunking, SeverityWarning, false},
		{"embedding", ErrCodeEmbeddingFailed, CategoryEmbedding, SeverityWarning, true},
		{"storage", ErrCodeStorageFailed, CategoryStorage, SeverityFatal, false},
		{"incompatible", ErrCodeIncompatibleCollection, CategorySync, SeverityFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestSyncError_ErrorFormat(t *testing.T) {
	err := ChunkingError("empty body", nil)
	assert.Equal(t, "[ERR_202_CHUNKING_FAILED] empty body", err.Error())
}

func TestSyncError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := EmbeddingError("batch failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestSyncError_IsMatchesByCode(t *testing.T) {
	a := StorageError("write failed", nil)
	b := StorageError("another write failed", nil)
	c := ChunkingError("nope", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStorageFailed, nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(IncompatibleError("no schema version")))
	assert.True(t, IsFatal(StorageError("delete failed", nil)))
	assert.False(t, IsFatal(ChunkingError("skip me", nil)))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(fmt.Errorf("plain error")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EmbeddingError("timeout", nil)))
	assert.False(t, IsRetryable(StorageError("disk", nil)))
	assert.False(t, IsRetryable(nil))
}

func TestWithDetail(t *testing.T) {
	err := ChunkingError("empty body", nil).
		WithDetail("title", "notes/a.md").
		WithDetail("size", "0")

	assert.Equal(t, "notes/a.md", err.Details["title"])
	assert.Equal(t, "0", err.Details["size"])
}
