package tools

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Registry maps tool IDs to handlers and keeps catalog order.
type Registry struct {
	handlers map[ID]Handler
	order    []ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ID]Handler)}
}

// Register adds a handler. The handler's name must be a catalog ID and may
// only be registered once.
func (r *Registry) Register(h Handler) error {
	name := h.Definition().Name
	if _, ok := ParseID(string(name)); !ok {
		return fmt.Errorf("tool %q is not in the catalog", name)
	}
	if _, dup := r.handlers[name]; dup {
		return fmt.Errorf("tool %q registered twice", name)
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	return nil
}

// Get returns the handler for a tool name, validating it against the catalog first.
func (r *Registry) Get(name string) (Handler, bool) {
	id, ok := ParseID(name)
	if !ok {
		return nil, false
	}
	h, ok := r.handlers[id]
	return h, ok
}

// Definitions returns every registered definition in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.handlers[id].Definition())
	}
	return defs
}

// OpenAITools converts the catalog to the completion backend's tool format.
func (r *Registry) OpenAITools() []openai.Tool {
	defs := r.Definitions()
	if len(defs) == 0 {
		return nil
	}

	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(d.Name),
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return out
}

// Summary renders the catalog for the system prompt, one line per tool.
func (r *Registry) Summary() string {
	defs := r.Definitions()
	if len(defs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n")
	for _, d := range defs {
		desc := d.Description
		if i := strings.Index(desc, ". "); i > 0 {
			desc = desc[:i+1]
		}
		sb.WriteString("- ")
		sb.WriteString(string(d.Name))
		if d.Paid {
			sb.WriteString(" (paid plans)")
		}
		sb.WriteString(": ")
		sb.WriteString(desc)
		sb.WriteString("\n")
	}
	return sb.String()
}
