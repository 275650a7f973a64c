// Package schema builds JSON Schema documents from Go types, for tool
// parameters and structured output.
package schema

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// Reflector inlines every definition; chat endpoints do not resolve $ref.
var Reflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// Generate returns the schema of T, without the $schema and $id keywords.
//
//	type Book struct {
//	    Title string `json:"title" jsonschema:"description=The book title"`
//	    Year  int    `json:"year,omitempty"`
//	}
//	raw, err := schema.Generate[Book]()
func Generate[T any]() (json.RawMessage, error) {
	var zero T
	return reflect(&zero)
}

// MustGenerate is like Generate but panics on error.
func MustGenerate[T any]() json.RawMessage {
	raw, err := Generate[T]()
	if err != nil {
		panic(err)
	}
	return raw
}

func reflect(v any) (json.RawMessage, error) {
	s := Reflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return raw, nil
}

// RequireAll rewrites an object schema for strict structured output: every
// property becomes required and additional properties are refused, at every
// nesting level.
func RequireAll(raw json.RawMessage) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	requireAll(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return out, nil
}

func requireAll(node map[string]any) {
	if props, ok := node["properties"].(map[string]any); ok {
		names := make([]string, 0, len(props))
		for name, p := range props {
			names = append(names, name)
			if child, ok := p.(map[string]any); ok {
				requireAll(child)
			}
		}
		slices.Sort(names)
		node["required"] = names
		node["additionalProperties"] = false
	}
	if items, ok := node["items"].(map[string]any); ok {
		requireAll(items)
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if list, ok := node[key].([]any); ok {
			for _, alt := range list {
				if child, ok := alt.(map[string]any); ok {
					requireAll(child)
				}
			}
		}
	}
}
