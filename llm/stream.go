package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/i2y/oaicompat/provider"
)

// ErrStreamingUnsupported is returned when the provider cannot stream.
var ErrStreamingUnsupported = errors.New("provider does not support streaming")

type (
	// StreamChunk is one step of a streaming response.
	StreamChunk = provider.StreamChunk

	// ToolCallDelta is an incremental piece of a tool call.
	ToolCallDelta = provider.ToolCallDelta
)

// Stream is a streaming response. It is single-pass and not safe for
// concurrent use.
type Stream struct {
	stream provider.ResponseStream
	req    *provider.Request
	config *callConfig
	resp   *Response[string]
}

// Chunks returns an iterator over the stream.
//
//	stream, err := llm.CallStream(ctx, "Write a story")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for chunk := range stream.Chunks() {
//	    fmt.Print(chunk.Delta)
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
func (s *Stream) Chunks() iter.Seq[StreamChunk] {
	return func(yield func(StreamChunk) bool) {
		for s.stream.Next() {
			if !yield(*s.stream.Current()) {
				return
			}
		}
	}
}

// Err returns the error that ended the stream, if any. The partial response
// is still available from Response.
func (s *Stream) Err() error {
	return s.stream.Err()
}

// Close stops the stream and releases the connection.
func (s *Stream) Close() error {
	return s.stream.Close()
}

// Response returns what has been aggregated so far. Once the stream has
// ended the same Response is returned on every call.
func (s *Stream) Response() Response[string] {
	if s.resp != nil {
		return *s.resp
	}

	acc := s.stream.Accumulated()
	if acc == nil {
		acc = &provider.Response{}
	}
	assignCallIDs(acc.ToolCalls)
	resp := newResponse(acc, acc.Content, nil, history(s.req, acc), s.config)

	if s.stream.Done() {
		s.resp = &resp
	}
	return resp
}

// CallStream sends prompt and streams the reply.
func CallStream(ctx context.Context, prompt string, opts ...Option) (*Stream, error) {
	return CallMessagesStream(ctx, []Message{UserMessage(prompt)}, opts...)
}

// CallMessagesStream streams the reply to a conversation.
func CallMessagesStream(ctx context.Context, messages []Message, opts ...Option) (*Stream, error) {
	cfg := newCallConfig(opts)
	p, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	sp, ok := p.(provider.StreamingProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamingUnsupported, p.Name())
	}

	req := cfg.buildRequest(messages)
	stream, err := sp.CallStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	return &Stream{stream: stream, req: req, config: cfg}, nil
}
