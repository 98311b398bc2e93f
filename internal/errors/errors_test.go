package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesClassification(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeStoreQuery, CategoryStorage, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryStorage, SeverityFatal, false},
		{ErrCodeEmbeddingFailed, CategoryCollaborator, SeverityError, false},
		{ErrCodeVectorSearchFailed, CategoryCollaborator, SeverityWarning, true},
		{ErrCodeVectorTimeout, CategoryCollaborator, SeverityWarning, true},
		{ErrCodeRerankerFailed, CategoryCollaborator, SeverityWarning, true},
		{ErrCodeInvalidWeights, CategoryValidation, SeverityError, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
		{ErrCodeSnapshotMissing, CategoryInternal, SeverityFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeQueryEmpty, "query is empty", nil)
	assert.Equal(t, "[ERR_401_QUERY_EMPTY] query is empty", err.Error())
}

func TestWrap(t *testing.T) {
	t.Run("preserves the cause", func(t *testing.T) {
		cause := stderrors.New("disk on fire")
		err := Wrap(ErrCodeStoreQuery, cause)
		require.NotNil(t, err)
		assert.Equal(t, "disk on fire", err.Message)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nil error wraps to nil", func(t *testing.T) {
		assert.Nil(t, Wrap(ErrCodeStoreQuery, nil))
	})
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeVectorTimeout, "timed out", nil)
	b := New(ErrCodeVectorTimeout, "different message", nil)
	c := New(ErrCodeVectorSearchFailed, "failed", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
	assert.False(t, a.Is(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidFilter, "bad filter", nil).
		WithDetail("field", "year_from").
		WithDetail("value", "3000")
	assert.Equal(t, "year_from", err.Details["field"])
	assert.Equal(t, "3000", err.Details["value"])
}

func TestHelpers(t *testing.T) {
	retryable := New(ErrCodeVectorSearchFailed, "x", nil)
	fatal := New(ErrCodeSnapshotMissing, "x", nil)
	plain := stderrors.New("plain")

	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsRetryable(fatal))
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsFatal(fatal))
	assert.False(t, IsFatal(retryable))
	assert.False(t, IsFatal(nil))

	assert.Equal(t, ErrCodeSnapshotMissing, GetCode(fatal))
	assert.Empty(t, GetCode(plain))
	assert.Equal(t, CategoryCollaborator, GetCategory(retryable))
	assert.Empty(t, string(GetCategory(plain)))
}
