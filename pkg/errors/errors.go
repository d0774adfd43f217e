package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode defines known error types in the engine.
type ErrorCode int

const (
	// Core error codes.
	Unknown ErrorCode = iota
	InvalidInput
	ResourceNotFound
	Canceled

	// Startup errors. Invalid configuration is fatal and aborts the run.
	InvalidConfiguration

	// Per-candidate errors, recovered as infeasible fitness.
	EvaluationTimeout
	EvaluationFailed

	// Artifact errors.
	IntegrityViolation
	TelemetryWriteFailed
	PromotionWriteFailed
)

// String names the code for logs and telemetry records.
func (c ErrorCode) String() string {
	switch c {
	case InvalidInput:
		return "invalid_input"
	case ResourceNotFound:
		return "resource_not_found"
	case Canceled:
		return "canceled"
	case InvalidConfiguration:
		return "invalid_configuration"
	case EvaluationTimeout:
		return "evaluation_timeout"
	case EvaluationFailed:
		return "evaluation_failed"
	case IntegrityViolation:
		return "integrity_violation"
	case TelemetryWriteFailed:
		return "telemetry_write_failed"
	case PromotionWriteFailed:
		return "promotion_write_failed"
	default:
		return "unknown"
	}
}

// Error represents a structured error with context.
type Error struct {
	code     ErrorCode // Type of error
	message  string    // Human-readable message
	original error     // Original/wrapped error
	fields   Fields    // Additional context
}

// Fields carries structured data about the error.
type Fields map[string]interface{}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.message)

	if e.original != nil {
		b.WriteString(": ")
		b.WriteString(e.original.Error())
	}

	if len(e.fields) > 0 {
		b.WriteString(" [")
		for k, v := range e.fields {
			fmt.Fprintf(&b, "%s=%v ", k, v)
		}
		b.WriteString("]")
	}

	return strings.TrimSpace(b.String())
}

func (e *Error) Unwrap() error {
	return e.original
}

func (e *Error) Code() ErrorCode {
	return e.code
}

// New creates a new error with a code and message.
func New(code ErrorCode, message string) error {
	return &Error{
		code:    code,
		message: message,
	}
}

// Newf creates a new error with a code and formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		code:     code,
		message:  message,
		original: err,
	}
}

// WithFields adds structured context to an error.
func WithFields(err error, fields Fields) error {
	if err == nil {
		return nil
	}

	// If it's already our error type, add fields
	if e, ok := err.(*Error); ok {
		newFields := make(Fields)
		for k, v := range e.fields {
			newFields[k] = v
		}
		for k, v := range fields {
			newFields[k] = v
		}

		return &Error{
			code:     e.code,
			message:  e.message,
			original: e.original,
			fields:   newFields,
		}
	}

	// Otherwise, create new error
	return &Error{
		code:     Unknown,
		message:  err.Error(),
		original: err,
		fields:   fields,
	}
}

// Code extracts the error code from anywhere in the error chain. Unknown is
// returned for errors that never passed through this package.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return Unknown
}

// Is implements error matching.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// As implements error type casting for errors.As.
func (e *Error) As(target interface{}) bool {
	errorPtr, ok := target.(**Error)
	if !ok {
		return false
	}
	*errorPtr = e
	return true
}

func (e *Error) Fields() Fields {
	if e.fields == nil {
		return Fields{}
	}
	fields := make(Fields, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	return fields
}
