package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/i2y/oaicompat/provider"
	"github.com/i2y/oaicompat/schema"
)

// Tool is an executable function the model can call.
type Tool interface {
	// Name returns the tool's name as seen by the model.
	Name() string

	// Description returns the tool's description for the model.
	Description() string

	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() json.RawMessage

	// Execute runs the tool with the given JSON arguments.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

func specOf(t Tool) provider.ToolSpec {
	return provider.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// TypedTool is a Tool whose schema is generated from its input type.
type TypedTool[In any, Out any] struct {
	name        string
	description string
	fn          func(ctx context.Context, in In) (Out, error)
	schema      json.RawMessage
}

// NewTool creates a tool from a function. The JSON schema of In describes
// the arguments.
//
//	type WeatherInput struct {
//	    City string `json:"city" jsonschema:"description=City name"`
//	}
//
//	weather, err := llm.NewTool("get_weather", "Get weather for a city",
//	    func(ctx context.Context, in WeatherInput) (string, error) {
//	        return "sunny", nil
//	    },
//	)
func NewTool[In any, Out any](
	name, description string,
	fn func(ctx context.Context, in In) (Out, error),
) (*TypedTool[In, Out], error) {
	params, err := schema.Generate[In]()
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return &TypedTool[In, Out]{
		name:        name,
		description: description,
		fn:          fn,
		schema:      params,
	}, nil
}

// MustNewTool is like NewTool but panics on error.
func MustNewTool[In any, Out any](
	name, description string,
	fn func(ctx context.Context, in In) (Out, error),
) *TypedTool[In, Out] {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *TypedTool[In, Out]) Name() string {
	return t.name
}

func (t *TypedTool[In, Out]) Description() string {
	return t.description
}

func (t *TypedTool[In, Out]) Parameters() json.RawMessage {
	return t.schema
}

// Execute decodes args into In and runs the tool.
func (t *TypedTool[In, Out]) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var input In
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, &ToolError{Tool: t.name, Cause: fmt.Errorf("decoding arguments: %w", err)}
	}
	return t.fn(ctx, input)
}

// TypedCall runs the tool without going through JSON.
func (t *TypedTool[In, Out]) TypedCall(ctx context.Context, input In) (Out, error) {
	return t.fn(ctx, input)
}

// ToolRegistry manages a collection of tools by name.
type ToolRegistry struct {
	tools map[string]Tool
}

// NewToolRegistry creates a registry holding tools.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	r.Register(tools...)
	return r
}

// Register adds tools, replacing any with the same name.
func (r *ToolRegistry) Register(tools ...Tool) {
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools sorted by name.
func (r *ToolRegistry) All() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	slices.SortFunc(tools, func(a, b Tool) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return tools
}

// Specs returns the tool definitions in name order.
func (r *ToolRegistry) Specs() []provider.ToolSpec {
	all := r.All()
	specs := make([]provider.ToolSpec, len(all))
	for i, t := range all {
		specs[i] = specOf(t)
	}
	return specs
}

// ExecuteToolCalls runs each call and returns one tool message per call, in
// order. A failing tool reports its error in the message content so the model
// can react to it; an unknown tool name aborts.
func ExecuteToolCalls(ctx context.Context, toolCalls []ToolCall, registry *ToolRegistry) ([]Message, error) {
	if len(toolCalls) == 0 {
		return nil, nil
	}

	messages := make([]Message, 0, len(toolCalls))
	for _, tc := range toolCalls {
		tool, ok := registry.Get(tc.Name)
		if !ok {
			return nil, &ToolNotFoundError{Name: tc.Name, CallID: tc.ID}
		}

		args := tc.Arguments
		if args == "" {
			args = "{}"
		}
		result, err := tool.Execute(ctx, json.RawMessage(args))
		messages = append(messages, ToolMessage(tc.ID, toolContent(result, err)))
	}
	return messages, nil
}

func toolContent(result any, err error) string {
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if s, ok := result.(string); ok {
		return s
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error marshaling result: %v", err)
	}
	return string(b)
}
