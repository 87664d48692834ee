// Package tools defines the tools callable by the reasoning loop and a
// closed registry that dispatches by name.
package tools

import (
	"context"
	"fmt"

	"github.com/kadirpekel/fedqa/pkg/llms"
)

// Result is a tool observation handed back to the model. SourceTitles
// carries the titles of any passages the tool surfaced, so the response
// assembler can validate cited sources against what was actually
// retrieved.
type Result struct {
	Content      string
	SourceTitles []string
}

// Tool is a capability the model may invoke.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Registry is a closed set of tools keyed by name. Dispatch happens by
// lookup only; unknown names are an error, never a fallback.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools. Duplicate names
// are rejected.
func NewRegistry(toolList ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool, len(toolList)),
	}
	for _, tool := range toolList {
		name := tool.Name()
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions returns tool definitions in registration order for the
// completion request.
func (r *Registry) Definitions() []llms.ToolDefinition {
	defs := make([]llms.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, llms.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return defs
}
