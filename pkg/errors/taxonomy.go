package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	// Transport Errors (1xxx)
	ErrSubmissionFailed    = "RISK-1001" // Initial submit failed on the wire or with an HTTP error
	ErrPollTransportFailed = "RISK-1002" // Status request failed or returned garbage
	ErrExportFailed        = "RISK-1003" // CSV/PDF generation request failed

	// Validation Errors (3xxx)
	ErrValidation    = "RISK-3001" // Formula/variable mismatch, bad parameters
	ErrInvalidUpload = "RISK-3002" // CSV upload rejected before submission
	ErrNoData        = "RISK-3003" // Export requested without a result

	// Task Errors (4xxx)
	ErrTaskFailed = "RISK-4001" // Backend reported FAILURE
	ErrPollLimit  = "RISK-4002" // Configured attempt or time budget exhausted

	// System Errors (5xxx)
	ErrInternal = "RISK-5001" // Unexpected internal error
)

// ErrorSeverity represents the severity level
type ErrorSeverity int

const (
	SeverityCritical ErrorSeverity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
)

// Error is a coded failure carrying what the user should be told
type Error struct {
	Code          string                 `json:"code"`
	Category      ErrorCategory          `json:"category"`
	Message       string                 `json:"message"`
	Severity      ErrorSeverity          `json:"severity"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Retryable     bool                   `json:"retryable"`
	UserMessage   string                 `json:"user_message,omitempty"`
	CorrelationID string                 `json:"correlation_id"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error by code so sentinel comparisons work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Notice is the text shown to the user for this error
func (e *Error) Notice() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the text shown to the user
func (e *Error) WithUserMessage(msg string) *Error {
	e.UserMessage = msg
	return e
}

// ToJSON serializes the error to JSON
func (e *Error) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code string, message string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		Category:      getCategoryFromCode(code),
		Severity:      getSeverityFromCode(code),
		Retryable:     isRetryableCode(code),
		Timestamp:     time.Now(),
		CorrelationID: uuid.New().String(),
	}
}

// Wrap wraps an existing error under a code. A nil error stays nil.
func Wrap(err error, code string, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.cause = err
	return e
}

// Code returns the code of the first *Error in err's chain, or "" if there is none
func Code(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	return Code(err) == code
}

// Notice returns the user-facing text for err
func Notice(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Notice()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func getCategoryFromCode(code string) ErrorCategory {
	if len(code) < 6 {
		return ErrorCategory("unknown")
	}

	switch code[5:6] { // first digit after "RISK-"
	case "1":
		return ErrorCategory("transport")
	case "3":
		return ErrorCategory("validation")
	case "4":
		return ErrorCategory("task")
	case "5":
		return ErrorCategory("system")
	default:
		return ErrorCategory("unknown")
	}
}

func getSeverityFromCode(code string) ErrorSeverity {
	switch code {
	case ErrInternal:
		return SeverityCritical
	case ErrSubmissionFailed, ErrPollTransportFailed, ErrTaskFailed:
		return SeverityHigh
	case ErrExportFailed, ErrPollLimit:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// isRetryableCode only marks exports; submit and poll failures are never retried
func isRetryableCode(code string) bool {
	return code == ErrExportFailed
}
