// Package provider defines the boundary between a host runtime and a chat
// completion provider: request and response types, the transport capability
// the host lends to a provider, and the error taxonomy.
package provider

import (
	"context"
	"io"
	"net/http"
)

// Provider is the core abstraction for chat providers.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai-compat").
	Name() string

	// Call executes a non-streaming request.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// StreamingProvider extends Provider with streaming capability.
type StreamingProvider interface {
	Provider

	// CallStream executes a streaming request.
	CallStream(ctx context.Context, req *Request) (ResponseStream, error)
}

// ResponseStream is a finite, single-pass sequence of incremental chunks.
type ResponseStream interface {
	// Next advances to the next chunk, returns false when done.
	Next() bool

	// Current returns the current chunk.
	Current() *StreamChunk

	// Err returns any fatal error that stopped the stream.
	Err() error

	// Close releases stream resources.
	Close() error

	// Done reports whether the stream has ended: the end marker was read,
	// the transport closed, a fatal error occurred or Close was called.
	Done() bool

	// Accumulated returns the full response accumulated so far.
	Accumulated() *Response
}

// StreamChunk is the host-facing view of one fold step.
type StreamChunk struct {
	Delta         string
	ToolCallDelta *ToolCallDelta
	ToolCalls     []ToolCall // Tool calls finalized by this step
	FinishReason  FinishReason
}

// ToolCallDelta represents incremental tool call data in streaming.
type ToolCallDelta struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}

// WireRequest is a fully assembled HTTP request: the only thing a Transport
// needs to reach the endpoint.
type WireRequest struct {
	URL    string
	Header http.Header
	Body   []byte
	Stream bool
}

// Transport is the byte-stream capability supplied by the host. It delivers
// the response body as ordered bytes, in chunks of any size.
type Transport interface {
	RoundTrip(ctx context.Context, req *WireRequest) (io.ReadCloser, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *WireRequest) (io.ReadCloser, error)

// RoundTrip calls f(ctx, req).
func (f TransportFunc) RoundTrip(ctx context.Context, req *WireRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}
