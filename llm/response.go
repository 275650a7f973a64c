package llm

import (
	"context"

	"github.com/i2y/oaicompat/provider"
)

type (
	// ToolCall is a tool invocation requested by the model.
	ToolCall = provider.ToolCall

	// Usage contains token usage statistics.
	Usage = provider.Usage

	// FinishReason indicates why the model stopped generating.
	FinishReason = provider.FinishReason
)

const (
	FinishReasonStop          = provider.FinishReasonStop
	FinishReasonToolCalls     = provider.FinishReasonToolCalls
	FinishReasonLength        = provider.FinishReasonLength
	FinishReasonContentFilter = provider.FinishReasonContentFilter
	FinishReasonError         = provider.FinishReasonError
)

// Response wraps the provider response with type-safe parsed content.
// T is the type of structured output expected from the model.
type Response[T any] struct {
	raw       *provider.Response
	parsed    T
	hasParsed bool
	parseErr  error
	messages  []Message
	config    *callConfig
}

func newResponse[T any](raw *provider.Response, parsed T, parseErr error, messages []Message, cfg *callConfig) Response[T] {
	return Response[T]{
		raw:       raw,
		parsed:    parsed,
		hasParsed: parseErr == nil,
		parseErr:  parseErr,
		messages:  messages,
		config:    cfg,
	}
}

// Text returns the raw text content of the response.
func (r Response[T]) Text() string {
	if r.raw == nil {
		return ""
	}
	return r.raw.Content
}

// Parsed returns the structured output. It returns ErrNotParsed if the
// response was not created by CallParse.
func (r Response[T]) Parsed() (T, error) {
	if r.parseErr != nil {
		return r.parsed, r.parseErr
	}
	if !r.hasParsed {
		return r.parsed, ErrNotParsed
	}
	return r.parsed, nil
}

// MustParse returns the parsed value or panics.
func (r Response[T]) MustParse() T {
	v, err := r.Parsed()
	if err != nil {
		panic(err)
	}
	return v
}

// HasToolCalls returns true if the response contains tool calls.
func (r Response[T]) HasToolCalls() bool {
	return r.raw.HasToolCalls()
}

// ToolCalls returns the finalized tool calls, in the order the model
// started them.
func (r Response[T]) ToolCalls() []ToolCall {
	if r.raw == nil {
		return nil
	}
	calls := make([]ToolCall, len(r.raw.ToolCalls))
	copy(calls, r.raw.ToolCalls)
	return calls
}

// Usage returns token usage statistics, if the endpoint reported any.
func (r Response[T]) Usage() Usage {
	if r.raw == nil {
		return Usage{}
	}
	return r.raw.Usage
}

// FinishReason returns why the model stopped generating.
func (r Response[T]) FinishReason() FinishReason {
	if r.raw == nil {
		return ""
	}
	return r.raw.FinishReason
}

// Errors returns the recoverable problems met while building the response,
// such as tool calls whose arguments were not valid JSON.
func (r Response[T]) Errors() []error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Errors
}

// Err returns the terminal error of a partial response.
func (r Response[T]) Err() error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Err
}

// Raw returns the underlying provider response.
func (r Response[T]) Raw() *provider.Response {
	return r.raw
}

// Messages returns the conversation history including the assistant's reply.
func (r Response[T]) Messages() []Message {
	return r.messages
}

// Resume continues the conversation with a user message, using the
// provider, model, sampling settings and tools of the original call.
//
//	resp, _ := llm.Call(ctx, "Recommend a book")
//	next, _ := resp.Resume(ctx, "Why that one?")
func (r Response[T]) Resume(ctx context.Context, content string, opts ...Option) (Response[string], error) {
	return r.resume(ctx, []Message{UserMessage(content)}, opts)
}

// ResumeWithToolOutputs continues the conversation with tool results.
//
//	if resp.HasToolCalls() {
//	    outputs, _ := llm.ExecuteToolCalls(ctx, resp.ToolCalls(), registry)
//	    next, _ := resp.ResumeWithToolOutputs(ctx, outputs)
//	}
func (r Response[T]) ResumeWithToolOutputs(ctx context.Context, toolOutputs []Message, opts ...Option) (Response[string], error) {
	return r.resume(ctx, toolOutputs, opts)
}

func (r Response[T]) resume(ctx context.Context, next []Message, opts []Option) (Response[string], error) {
	if r.config == nil {
		return Response[string]{}, ErrCannotResume
	}

	messages := make([]Message, 0, len(r.messages)+len(next))
	messages = append(messages, r.messages...)
	messages = append(messages, next...)

	allOpts := append(r.config.resumeOptions(), opts...)
	return CallMessages(ctx, messages, allOpts...)
}
