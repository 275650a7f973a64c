package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotParsed is returned by Response.Parsed on a text-only response.
	ErrNotParsed = errors.New("no structured output requested; call CallParse")

	// ErrCannotResume is returned by Resume on a zero Response.
	ErrCannotResume = errors.New("cannot resume: response has no call history")
)

// ParseError reports assistant content that does not decode into the type
// whose json_schema was requested. Content is the raw assistant text.
type ParseError struct {
	Schema  string
	Content string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decoding structured output %q: %v", e.Schema, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ToolError wraps a tool failure. ExecuteToolCalls turns it into tool message
// content instead of returning it.
type ToolError struct {
	Tool  string
	Cause error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ToolNotFoundError means the model called a tool the registry does not hold.
type ToolNotFoundError struct {
	Name   string
	CallID string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool call %s names unknown tool %q", e.CallID, e.Name)
}
