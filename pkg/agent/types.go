// Package agent implements the tool-calling reasoning loop and the chat
// service that wraps it with the input guardrail and tracing.
package agent

// Response is the structured agent answer. Sources hold titles of
// passages the run actually retrieved.
type Response struct {
	Answer  string   `json:"answer" jsonschema:"required,description=Plain text answer to the question"`
	Sources []string `json:"sources" jsonschema:"required,description=Titles of the speech passages the answer is based on"`
}

// ToolInvocationRecord logs one tool call made during a run.
type ToolInvocationRecord struct {
	Name      string
	Arguments map[string]interface{}
	Result    string
}

// RunState tracks where the reasoning loop is.
type RunState int

const (
	// StateAwaitingModel means the next step is a model call.
	StateAwaitingModel RunState = iota
	// StateToolCallPending means the model requested tools that have
	// not been executed yet.
	StateToolCallPending
	// StateTerminated means the run produced a final response or
	// failed.
	StateTerminated
)

func (s RunState) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolCallPending:
		return "tool_call_pending"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// RunTrace is the per-run record of what the loop did. Runs share no
// mutable state, every request gets its own trace.
type RunTrace struct {
	ToolInvocations []ToolInvocationRecord
	RetrievedTitles []string
	Iterations      int
	FinalState      RunState
}

// seenTitle reports whether title was retrieved during the run.
func (t *RunTrace) seenTitle(title string) bool {
	for _, seen := range t.RetrievedTitles {
		if seen == title {
			return true
		}
	}
	return false
}

// addTitles appends titles not yet recorded, preserving first-seen
// order.
func (t *RunTrace) addTitles(titles []string) {
	for _, title := range titles {
		if title != "" && !t.seenTitle(title) {
			t.RetrievedTitles = append(t.RetrievedTitles, title)
		}
	}
}
