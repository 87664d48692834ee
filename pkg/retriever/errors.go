package retriever

import "fmt"

// RetrievalError represents a failure against the vector knowledge base.
type RetrievalError struct {
	Operation string // Operation that failed ("verify_collection", "embed", "search")
	Query     string // Query that caused the error, if any
	Message   string // Error message
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	msg := fmt.Sprintf("[retriever] %s: %s", e.Operation, e.Message)
	if e.Query != "" {
		query := e.Query
		if len(query) > 50 {
			query = query[:50] + "..."
		}
		msg += fmt.Sprintf(" (query: %q)", query)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewRetrievalError creates a new RetrievalError.
func NewRetrievalError(operation, message, query string, err error) *RetrievalError {
	return &RetrievalError{
		Operation: operation,
		Query:     query,
		Message:   message,
		Err:       err,
	}
}
