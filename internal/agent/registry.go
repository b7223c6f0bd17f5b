package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Handler executes a tool against its decoded argument object. The returned
// value must be JSON-serializable; by convention it carries a "success" flag.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// ToolDefinition is what the provider sees of a tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool is a named, described, callable lookup the model may request.
type Tool struct {
	ToolDefinition
	handler Handler
}

// ToolResult is the structured output of one executed tool call.
type ToolResult struct {
	CallID string
	Name   string
	Output json.RawMessage
}

// NewRawTool builds a tool from an explicit parameter schema.
func NewRawTool(name, description string, parameters map[string]any, h Handler) *Tool {
	return &Tool{
		ToolDefinition: ToolDefinition{Name: name, Description: description, Parameters: parameters},
		handler:        h,
	}
}

// NewTool builds a tool whose parameter schema is reflected from the argument
// struct T. Field descriptions come from `jsonschema_description` tags and
// enums from `jsonschema:"enum=..."`; fields without omitempty are required.
func NewTool[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) (*Tool, error) {
	params, err := reflectParameters[T]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return NewRawTool(name, description, params, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args T
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return fn(ctx, args)
	}), nil
}

func reflectParameters[T any]() (map[string]any, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(new(T))
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(params, "$schema")
	delete(params, "$id")
	return params, nil
}

// Registry is the fixed set of tools offered to the model. It is read-only
// after construction and may be shared between concurrent runs.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (*Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the declared tools in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].ToolDefinition)
	}
	return defs
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}
