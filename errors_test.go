package joydoc

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrorTypeValidation, ErrCodeValidationFailed, "bad document")
	assert.Equal(t, "[validation:VALIDATION_FAILED] bad document", err.Error())

	err = NewConfigError("server.port", "out of range")
	assert.Equal(t, "[config:INVALID_CONFIG] field 'server.port': out of range", err.Error())

	err = NewSourceError("s3://bucket/doc.json", "cannot read", io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "cannot read: unexpected EOF")
	assert.Equal(t, "s3://bucket/doc.json", err.Details["location"])
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestError_Builders(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternalError("walk failed", nil).
		WithCause(cause).
		WithField("fields").
		WithDetail("index", 3).
		WithDetails(map[string]any{"kind": "x"})

	assert.Equal(t, "fields", err.Field)
	assert.Equal(t, 3, err.Details["index"])
	assert.Equal(t, "x", err.Details["kind"])
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestError_Predicates(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("outer: %w", err) }

	assert.True(t, IsValidationError(wrap(NewValidationFailedError("x"))))
	assert.True(t, IsDecodeError(wrap(NewDecodeError(ErrCodeInvalidYAML, "x", nil))))
	assert.True(t, IsSourceError(wrap(NewSourceError("a.json", "x", nil))))
	assert.True(t, IsStoreError(wrap(NewStoreError("x", nil))))
	assert.True(t, IsNotFoundError(wrap(NewNotFoundError(ErrCodeReportNotFound, "x"))))
	assert.True(t, IsConfigError(wrap(NewConfigError("f", "x"))))
	assert.True(t, IsConfigError(&ConfigError{Field: "f", Message: "x"}))
	assert.True(t, IsInternalError(wrap(NewInternalError("x", nil))))

	assert.False(t, IsStoreError(NewDecodeError(ErrCodeInvalidJSON, "x", nil)))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsNotFoundError(nil))
}
