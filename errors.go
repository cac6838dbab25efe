package joydoc

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an operational error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDecode     ErrorType = "decode"
	ErrorTypeSource     ErrorType = "source"
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error is the operational error of the engine and its tools. Conformance
// problems of a document are never reported as an Error; they are collected
// into a ValidationResult.
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to an Error
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to an Error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to an Error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithField adds field context to an Error
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// Error codes
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeInvalidYAML      = "INVALID_YAML"
	ErrCodeUnsupportedInput = "UNSUPPORTED_INPUT"

	ErrCodeSourceUnreadable = "SOURCE_UNREADABLE"
	ErrCodeInvalidLocation  = "INVALID_LOCATION"
	ErrCodeObjectNotFound   = "OBJECT_NOT_FOUND"

	ErrCodeStoreFailed      = "STORE_FAILED"
	ErrCodeConnectionFailed = "CONNECTION_FAILED"
	ErrCodeReportNotFound   = "REPORT_NOT_FOUND"
	ErrCodeCircuitOpen      = "CIRCUIT_OPEN"

	ErrCodeInvalidConfig = "INVALID_CONFIG"
	ErrCodeSchemaCompile = "SCHEMA_COMPILE_FAILED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewError creates a new Error
func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationFailedError creates the error a failed ValidationResult converts to
func NewValidationFailedError(message string) *Error {
	return NewError(ErrorTypeValidation, ErrCodeValidationFailed, message)
}

// NewDecodeError creates an error for input that cannot be decoded into a JSON tree
func NewDecodeError(code, message string, cause error) *Error {
	return NewError(ErrorTypeDecode, code, message).WithCause(cause)
}

// NewSourceError creates an error for a document location that cannot be read
func NewSourceError(location, message string, cause error) *Error {
	return NewError(ErrorTypeSource, ErrCodeSourceUnreadable, message).
		WithDetail("location", location).
		WithCause(cause)
}

// NewStoreError creates a report store error
func NewStoreError(message string, cause error) *Error {
	return NewError(ErrorTypeStore, ErrCodeStoreFailed, message).WithCause(cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(code, message string) *Error {
	return NewError(ErrorTypeNotFound, code, message)
}

// NewConfigError creates a configuration error
func NewConfigError(field, message string) *Error {
	return NewError(ErrorTypeConfig, ErrCodeInvalidConfig, message).WithField(field)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrorTypeInternal, ErrCodeInternalError, message).WithCause(cause)
}

func errorOfType(err error, errorType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsValidationError checks if an error is a failed validation verdict
func IsValidationError(err error) bool {
	return errorOfType(err, ErrorTypeValidation)
}

// IsDecodeError checks if an error is a decode error
func IsDecodeError(err error) bool {
	return errorOfType(err, ErrorTypeDecode)
}

// IsSourceError checks if an error is a source error
func IsSourceError(err error) bool {
	return errorOfType(err, ErrorTypeSource)
}

// IsStoreError checks if an error is a report store error
func IsStoreError(err error) bool {
	return errorOfType(err, ErrorTypeStore)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errorOfType(err, ErrorTypeNotFound)
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errorOfType(err, ErrorTypeConfig) || errors.As(err, &ce)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return errorOfType(err, ErrorTypeInternal)
}
