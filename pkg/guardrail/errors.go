package guardrail

import "fmt"

// ClassificationError represents a guardrail call or decode failure.
type ClassificationError struct {
	Message  string
	Question string
	Err      error
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	msg := fmt.Sprintf("[guardrail] %s", e.Message)
	if e.Question != "" {
		question := e.Question
		if len(question) > 50 {
			question = question[:50] + "..."
		}
		msg += fmt.Sprintf(" (question: %q)", question)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// NewClassificationError creates a new ClassificationError.
func NewClassificationError(message, question string, err error) *ClassificationError {
	return &ClassificationError{
		Message:  message,
		Question: question,
		Err:      err,
	}
}
