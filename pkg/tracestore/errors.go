package tracestore

import "fmt"

// TraceStoreError represents a failure against the trace collector API.
type TraceStoreError struct {
	Operation  string // Operation that failed ("get_spans", "annotate")
	StatusCode int    // HTTP status, 0 when the request never completed
	Message    string // Error message
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *TraceStoreError) Error() string {
	msg := fmt.Sprintf("[tracestore] %s: %s", e.Operation, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TraceStoreError) Unwrap() error {
	return e.Err
}

// NewTraceStoreError creates a new TraceStoreError.
func NewTraceStoreError(operation, message string, statusCode int, err error) *TraceStoreError {
	return &TraceStoreError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}
