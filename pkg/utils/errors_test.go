package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewAppError(ErrCodeValidation, "Activity entry validation failed", "scope: is required")
	assert.Equal(t, "VALIDATION_ERROR: Activity entry validation failed (scope: is required)", err.Error())
	assert.NotEmpty(t, err.File)
	assert.Positive(t, err.Line)

	bare := NewAppError(ErrCodeInternal, "boom")
	assert.Equal(t, "INTERNAL_ERROR: boom", bare.Error())
}

func TestWrapAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := WrapAppError(ErrCodeConcurrency, "Watermark update conflicted", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "database is locked", err.Details)

	wrapped := fmt.Errorf("bookmark: %w", err)
	assert.Equal(t, ErrCodeConcurrency, ErrorCode(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeConcurrency))
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("x"), false},
		{"validation", NewAppError(ErrCodeValidation, "bad"), false},
		{"database", NewAppError(ErrCodeDatabase, "bad"), false},
		{"concurrency", NewAppError(ErrCodeConcurrency, "retry"), true},
		{"unavailable", NewAppError(ErrCodeStorageUnavailable, "retry"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestNormalizeRequestID(t *testing.T) {
	assert.Equal(t, "abc-123", NormalizeRequestID(" abc-123 "))
	assert.Len(t, NormalizeRequestID(""), 36)
	assert.Len(t, NormalizeRequestID("has space"), 36)
	assert.NotEqual(t, GenerateID(), GenerateID())
}
