package agent

import "fmt"

// MalformedOutputError means the model's final message failed to decode
// against the response schema. It is always surfaced, never swallowed
// into an empty response.
type MalformedOutputError struct {
	Raw string // Raw model output that failed to decode
	Err error  // Underlying decode error
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	raw := e.Raw
	if len(raw) > 100 {
		raw = raw[:100] + "..."
	}
	return fmt.Sprintf("[agent] malformed structured output %q: %v", raw, e.Err)
}

// Unwrap returns the underlying error.
func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// NewMalformedOutputError creates a new MalformedOutputError.
func NewMalformedOutputError(raw string, err error) *MalformedOutputError {
	return &MalformedOutputError{
		Raw: raw,
		Err: err,
	}
}
