package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of a pipeline failure
type ErrorType int

const (
	// ErrorTypeConfig - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeSchema - a required column is absent from an input table
	ErrorTypeSchema
	// ErrorTypeValidation - invalid input values
	ErrorTypeValidation
	// ErrorTypeDatabase - graph or staging store failures
	ErrorTypeDatabase
	// ErrorTypeNetwork - remote source unreachable
	ErrorTypeNetwork
	// ErrorTypeTimeout - a bounded call ran out of time
	ErrorTypeTimeout
	// ErrorTypeFileSystem - file I/O failures
	ErrorTypeFileSystem
	// ErrorTypeInternal - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	// SeverityCritical stops the run
	SeverityCritical
)

// Error is a structured error carrying its category and context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds a key/value pair to the error context
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches any *Error of the same Type, so errors.Is(err, errors.Schema)
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns the error with its type, severity and context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n", e.Severity, e.Type, e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Context:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, e.Context[k]))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeSchema:
		return "SCHEMA"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeDatabase:
		return "DATABASE"
	case ErrorTypeNetwork:
		return "NETWORK"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Sentinels for errors.Is comparisons by type.
var (
	Config     = &Error{Type: ErrorTypeConfig}
	Schema     = &Error{Type: ErrorTypeSchema}
	Validation = &Error{Type: ErrorTypeValidation}
	Database   = &Error{Type: ErrorTypeDatabase}
	Network    = &Error{Type: ErrorTypeNetwork}
	Timeout    = &Error{Type: ErrorTypeTimeout}
	FileSystem = &Error{Type: ErrorTypeFileSystem}
)

func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error. Returns nil for a nil err.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// ConfigErrorf creates a configuration error
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// SchemaError reports required columns missing from a table
func SchemaError(table string, missing []string) *Error {
	return New(ErrorTypeSchema, SeverityCritical,
		fmt.Sprintf("missing required columns in %s: %s", table, strings.Join(missing, ", "))).
		WithContext("table", table).
		WithContext("missing", missing)
}

// ValidationErrorf creates a validation error
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// DatabaseErrorf wraps a store error. Context deadline failures are
// reported as timeouts instead.
func DatabaseErrorf(err error, format string, args ...interface{}) *Error {
	if IsDeadline(err) {
		return Wrap(err, ErrorTypeTimeout, SeverityCritical, fmt.Sprintf(format, args...))
	}
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, fmt.Sprintf(format, args...))
}

// NetworkErrorf wraps a network error, promoting deadlines to timeouts
func NetworkErrorf(err error, format string, args ...interface{}) *Error {
	if IsDeadline(err) {
		return Wrap(err, ErrorTypeTimeout, SeverityHigh, fmt.Sprintf(format, args...))
	}
	return Wrap(err, ErrorTypeNetwork, SeverityHigh, fmt.Sprintf(format, args...))
}

// TimeoutErrorf wraps an error that exceeded its deadline
func TimeoutErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeTimeout, SeverityCritical, fmt.Sprintf(format, args...))
}

// FileSystemErrorf wraps a filesystem error
func FileSystemErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsDeadline reports whether err stems from a context deadline or a
// net-style timeout.
func IsDeadline(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	if stderrors.As(err, &te) {
		return te.Timeout()
	}
	return false
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// GetType returns the type of an error, ErrorTypeInternal for foreign errors
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}
