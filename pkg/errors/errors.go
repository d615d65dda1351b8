package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeIO              ErrorType = "io"
	ErrorTypeEngine          ErrorType = "engine"
	ErrorTypeConfiguration   ErrorType = "configuration"
	ErrorTypeInternal        ErrorType = "internal"
)

// Error codes
const (
	CodeUnknownDataset    = "UNKNOWN_DATASET"
	CodeUnsupportedHeight = "UNSUPPORTED_HEIGHT"
	CodeUnknownDegree     = "UNKNOWN_DEGREE"
	CodeDeltaUndefined    = "DELTA_UNDEFINED"
	CodeLevelOutOfBounds  = "LEVEL_OUT_OF_BOUNDS"
	CodeHandleReleased    = "HANDLE_RELEASED"
	CodeUndeclaredMeasure = "UNDECLARED_MEASURE"
	CodeNoActiveRun       = "NO_ACTIVE_RUN"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeReadFailed        = "READ_FAILED"
	CodeWriteFailed       = "WRITE_FAILED"
	CodeEngineFailed      = "ENGINE_FAILED"
	CodeMalformedResult   = "MALFORMED_RESULT"
	CodeNotConnected      = "NOT_CONNECTED"
)

// Common application errors. Match them with errors.Is; the Type and Code are
// compared, so wrapped copies carrying extra details still match.
var (
	ErrUnknownDataset    = NewNotFoundError(CodeUnknownDataset, "unknown dataset")
	ErrUnsupportedHeight = NewInvalidArgumentError(CodeUnsupportedHeight, "unsupported hierarchy height")
	ErrUnknownDegree     = NewInvalidArgumentError(CodeUnknownDegree, "unknown generalization degree")
	ErrDeltaUndefined    = NewInvalidArgumentError(CodeDeltaUndefined, "no delta defined for dataset")
	ErrLevelOutOfBounds  = NewInvalidArgumentError(CodeLevelOutOfBounds, "generalization level exceeds hierarchy")
	ErrHandleReleased    = NewAppError(ErrorTypeInternal, CodeHandleReleased, "data handle already released")
	ErrUndeclaredMeasure = NewInvalidArgumentError(CodeUndeclaredMeasure, "measure was not declared")
	ErrNoActiveRun       = NewAppError(ErrorTypeInternal, CodeNoActiveRun, "no run has been added")
	ErrInvalidConfig     = NewConfigurationError(CodeInvalidConfig, "invalid configuration")
	ErrEngineFailed      = NewEngineError(CodeEngineFailed, "anonymization engine failed")
	ErrNotConnected      = NewIOError(CodeNotConnected, "not connected")
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext returns a copy of the error with an additional context entry.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	c := e.clone()
	if c.Context == nil {
		c.Context = make(map[string]interface{})
	}
	c.Context[key] = value
	return c
}

// WithDetails returns a copy of the error carrying details.
func (e *AppError) WithDetails(details string) *AppError {
	c := e.clone()
	c.Details = details
	return c
}

// Wrap returns a copy of the error caused by err.
func (e *AppError) Wrap(err error) *AppError {
	c := e.clone()
	c.Cause = err
	return c
}

func (e *AppError) clone() *AppError {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewInvalidArgumentError creates an invalid-argument error
func NewInvalidArgumentError(code, message string) *AppError {
	return NewAppError(ErrorTypeInvalidArgument, code, message)
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(code, message string) *AppError {
	return NewAppError(ErrorTypeNotFound, code, message)
}

// NewIOError creates an I/O error
func NewIOError(code, message string) *AppError {
	return NewAppError(ErrorTypeIO, code, message)
}

// NewEngineError creates an engine error
func NewEngineError(code, message string) *AppError {
	return NewAppError(ErrorTypeEngine, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeInvalidArgument
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeNotFound
}

// ValidationErrorDetail represents detailed validation error information
type ValidationErrorDetail struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

// ValidationErrors collects multiple validation problems into one error.
type ValidationErrors struct {
	Message string                  `json:"message"`
	Errors  []ValidationErrorDetail `json:"errors"`
}

// Error implements the error interface for ValidationErrors
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ve.Message
	}
	msg := ve.Message + ":"
	for i, d := range ve.Errors {
		if i > 0 {
			msg += ";"
		}
		msg += fmt.Sprintf(" %s %s", d.Field, d.Message)
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match.
func (ve *ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, message string, value interface{}) {
	ve.Errors = append(ve.Errors, ValidationErrorDetail{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors checks if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Message: "validation failed",
		Errors:  make([]ValidationErrorDetail, 0),
	}
}
