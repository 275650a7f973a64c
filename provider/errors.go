package provider

import (
	"errors"
	"fmt"
)

// ConfigError reports missing or invalid endpoint configuration. It is
// returned before any request is sent.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

// ValidationError reports malformed caller input. No request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// DecodeError reports a payload that could not be decoded. Raw holds the
// offending bytes.
type DecodeError struct {
	Raw   []byte
	Cause error
}

func (e *DecodeError) Error() string {
	const maxRaw = 120
	raw := string(e.Raw)
	if len(raw) > maxRaw {
		raw = raw[:maxRaw] + "..."
	}
	if e.Cause != nil {
		return fmt.Sprintf("decoding payload %q: %v", raw, e.Cause)
	}
	return fmt.Sprintf("decoding payload %q", raw)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// ToolArgumentsCorruptError reports a tool call whose concatenated arguments
// are not valid JSON. It affects that call only.
type ToolArgumentsCorruptError struct {
	Index     int
	ID        string
	Name      string
	Arguments string
	Cause     error
}

func (e *ToolArgumentsCorruptError) Error() string {
	return fmt.Sprintf("tool call %d (%s %q): arguments are not valid JSON: %v",
		e.Index, e.ID, e.Name, e.Cause)
}

func (e *ToolArgumentsCorruptError) Unwrap() error {
	return e.Cause
}

// IncompleteStreamError reports a stream that stopped before its terminal
// signal. The accompanying response holds whatever was aggregated.
type IncompleteStreamError struct {
	PendingToolCalls int
	Cause            error
}

func (e *IncompleteStreamError) Error() string {
	msg := "stream ended before completion"
	if e.PendingToolCalls > 0 {
		msg = fmt.Sprintf("%s with %d pending tool call(s)", msg, e.PendingToolCalls)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *IncompleteStreamError) Unwrap() error {
	return e.Cause
}

// APIError represents an error reported by the endpoint, either as a non-2xx
// response or as an error object inside the stream.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		if e.Type != "" {
			return fmt.Sprintf("api error (type %s): %s", e.Type, e.Message)
		}
		return "api error: " + e.Message
	}
	if e.Type != "" {
		return fmt.Sprintf("api error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsFatal reports whether err aborts a request before any partial result
// exists.
func IsFatal(err error) bool {
	var (
		cfgErr *ConfigError
		valErr *ValidationError
		decErr *DecodeError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &valErr) || errors.As(err, &decErr)
}
