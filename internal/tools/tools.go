// Package tools defines the tools available to the planning agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string                                                         `json:"name"`
	Description string                                                         `json:"description"`
	Parameters  map[string]any                                                 `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// List returns all tool definitions for the LLM, sorted by name so the
// catalogue presented to the model is stable across runs.
func (r *Registry) List() []map[string]any {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []map[string]any
	for _, name := range names {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name. Arguments are validated against the
// tool's parameter schema before the handler runs.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &UnknownToolError{Name: name}
	}

	if err := validateArgs(tool, args); err != nil {
		return "", err
	}

	return tool.Handler(ctx, args)
}

// validateArgs checks args against the tool's JSON schema.
func validateArgs(tool *Tool, args map[string]any) error {
	if tool.Parameters == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.Parameters),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("validate arguments for %s: %w", tool.Name, err)
	}
	if result.Valid() {
		return nil
	}

	detail := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			detail += "; "
		}
		detail += desc.String()
	}
	return &MalformedInputError{Tool: tool.Name, Detail: detail}
}

// marshalResult renders a tool's structured output as compact JSON for
// the model.
func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}
