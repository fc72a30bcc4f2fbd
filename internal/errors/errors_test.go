package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantCategory Category
		wantSeverity Severity
		wantRetry    bool
	}{
		{
			name:         "config error is fatal",
			code:         ErrCodeConfigInvalid,
			wantCategory: CategoryConfig,
			wantSeverity: SeverityFatal,
		},
		{
			name:         "artifact error is fatal",
			code:         ErrCodeVocabCorrupt,
			wantCategory: CategoryArtifact,
			wantSeverity: SeverityFatal,
		},
		{
			name:         "source timeout is retryable warning",
			code:         ErrCodeSourceTimeout,
			wantCategory: CategoryNetwork,
			wantSeverity: SeverityWarning,
			wantRetry:    true,
		},
		{
			name:         "unauthenticated is not retryable",
			code:         ErrCodeUnauthenticated,
			wantCategory: CategoryNetwork,
			wantSeverity: SeverityWarning,
		},
		{
			name:         "validation error",
			code:         ErrCodeInvalidInput,
			wantCategory: CategoryValidation,
			wantSeverity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "test message")
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetry, err.Retryable)
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk exploded")
	err := Wrap(cause, ErrCodeEmbeddingCorrupt, "loading embedding table")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), ErrCodeEmbeddingCorrupt)
	assert.Contains(t, err.Error(), "disk exploded")
	assert.True(t, err.IsFatal())
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeVocabMismatch, "sizes differ").
		WithContext("vocab_size", 32000).
		WithContext("embedding_rows", 31999)

	assert.Equal(t, 32000, err.Context["vocab_size"])
	assert.Equal(t, 31999, err.Context["embedding_rows"])
}

func TestCodeOf(t *testing.T) {
	se := New(ErrCodeSourceFailed, "remote down")
	wrapped := fmt.Errorf("outer: %w", se)

	assert.Equal(t, ErrCodeSourceFailed, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.True(t, IsRetryable(wrapped))
}
