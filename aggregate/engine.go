// Package aggregate folds streaming deltas into a chat response.
//
// An Engine is a strictly sequential fold: it never reorders or batches
// deltas, so the same input sequence always produces the same response. One
// Engine serves one request and holds no external resources; dropping it is
// the only teardown required.
package aggregate

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/i2y/oaicompat/delta"
	"github.com/i2y/oaicompat/provider"
)

// Option configures an Engine or a Pipeline.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	lenient bool
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used for recoverable problems.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLenientEnd accepts a stream that closes after a finish_reason without
// sending [DONE]. By default such a stream is incomplete.
func WithLenientEnd() Option {
	return func(o *options) {
		o.lenient = true
	}
}

// Snapshot is the read-only result of one fold step.
type Snapshot struct {
	Kind delta.Kind

	// TextDelta is the text appended by this step.
	TextDelta string

	// ToolCallDelta echoes a tool call fragment, with the id and the name
	// accumulated so far for its index.
	ToolCallDelta *provider.ToolCallDelta

	// Finalized lists tool calls completed by this step, in first-seen order.
	Finalized []provider.ToolCall

	// Errors lists recoverable errors raised by this step.
	Errors []error

	FinishReason provider.FinishReason

	// Done is set on the step that folded the end of the stream.
	Done bool
}

// accumulator is one tool call under construction. Entries live in an arena
// slice and are addressed by slot; no entry refers to another.
type accumulator struct {
	index     int
	id        string
	name      []byte
	args      []byte
	finalized bool
}

// Engine folds deltas into a response.
type Engine struct {
	opts *options

	id    string
	model string

	text  strings.Builder
	calls []accumulator
	slots map[int]int

	toolCalls  []provider.ToolCall
	usage      provider.Usage
	finish     provider.FinishReason
	finishSeen bool

	errs []error
	err  error

	ended  bool
	closed bool
}

// NewEngine returns an Engine for one response.
func NewEngine(opts ...Option) *Engine {
	return &Engine{
		opts:  newOptions(opts),
		slots: make(map[int]int),
	}
}

// Fold applies one delta. Deltas folded after the end of the stream or
// after Close are ignored.
func (e *Engine) Fold(d delta.Delta) Snapshot {
	snap := Snapshot{Kind: d.Kind()}
	if e.ended || e.closed {
		return snap
	}

	switch d := d.(type) {
	case delta.Content:
		e.text.WriteString(d.Text)
		snap.TextDelta = d.Text

	case delta.ToolCall:
		acc := e.entry(d.Index)
		if acc.id == "" {
			acc.id = d.ID
		}
		acc.name = append(acc.name, d.Name...)
		acc.args = append(acc.args, d.Arguments...)
		snap.ToolCallDelta = &provider.ToolCallDelta{
			Index:          d.Index,
			ID:             acc.id,
			Name:           string(acc.name),
			ArgumentsDelta: d.Arguments,
		}

	case delta.Finish:
		e.finish = d.Reason
		e.finishSeen = true
		snap.FinishReason = d.Reason
		if d.Err != nil && e.err == nil {
			e.err = d.Err
		}
		if finalizes(d.Reason) {
			snap.Finalized, snap.Errors = e.finalize()
		}

	case delta.Usage:
		e.usage = d.Usage

	case delta.End:
		snap.Done = true
		snap.Finalized, snap.Errors = e.end()
		snap.FinishReason = e.finish
	}

	return snap
}

// Close records that the transport ended. If the end of the stream was never
// folded the response is marked incomplete, wrapping cause when non-nil.
// The accumulated text and tool calls are kept either way.
func (e *Engine) Close(cause error) {
	if e.closed {
		return
	}
	defer func() { e.closed = true }()

	if e.ended {
		return
	}
	if e.opts.lenient && e.finishSeen && cause == nil {
		e.end()
		return
	}

	pending := len(e.pending())
	if e.err == nil {
		e.err = &provider.IncompleteStreamError{PendingToolCalls: pending, Cause: cause}
	}
	e.opts.logger.Warn("stream closed before completion",
		"pending_tool_calls", pending,
		"text_bytes", e.text.Len(),
		"cause", cause)
}

// Ended reports whether the end of the stream has been folded.
func (e *Engine) Ended() bool {
	return e.ended
}

// Text returns the text accumulated so far.
func (e *Engine) Text() string {
	return e.text.String()
}

// Pending returns the tool calls still under construction, in first-seen
// order. Their arguments may be incomplete JSON.
func (e *Engine) Pending() []provider.ToolCall {
	return e.pending()
}

// Response returns a copy of the aggregated response. Once the stream has
// ended or the engine is closed, the result no longer changes.
func (e *Engine) Response() *provider.Response {
	resp := &provider.Response{
		ID:               e.id,
		Model:            e.model,
		Content:          e.text.String(),
		FinishReason:     e.finish,
		Usage:            e.usage,
		PendingToolCalls: e.pending(),
		Err:              e.err,
	}
	if len(e.toolCalls) > 0 {
		resp.ToolCalls = append([]provider.ToolCall(nil), e.toolCalls...)
	}
	if len(e.errs) > 0 {
		resp.Errors = append([]error(nil), e.errs...)
	}
	return resp
}

func (e *Engine) setMeta(id, model string) {
	if e.id == "" {
		e.id = id
	}
	if e.model == "" {
		e.model = model
	}
}

func (e *Engine) recordError(err error) {
	e.errs = append(e.errs, err)
}

func (e *Engine) entry(index int) *accumulator {
	slot, ok := e.slots[index]
	if !ok {
		slot = len(e.calls)
		e.slots[index] = slot
		e.calls = append(e.calls, accumulator{index: index})
	}
	return &e.calls[slot]
}

func (e *Engine) pending() []provider.ToolCall {
	var out []provider.ToolCall
	for i := range e.calls {
		acc := &e.calls[i]
		if acc.finalized {
			continue
		}
		out = append(out, provider.ToolCall{
			ID:        acc.id,
			Name:      string(acc.name),
			Arguments: string(acc.args),
		})
	}
	return out
}

// end folds the end of the stream.
func (e *Engine) end() ([]provider.ToolCall, []error) {
	e.ended = true

	if e.finishSeen {
		if finalizes(e.finish) {
			return e.finalize()
		}
		return nil, nil
	}

	pending := len(e.pending())
	if e.text.Len() > 0 && pending == 0 {
		e.finish = provider.FinishReasonStop
		return nil, nil
	}
	if e.err == nil {
		e.err = &provider.IncompleteStreamError{PendingToolCalls: pending}
	}
	return nil, nil
}

// finalize validates every pending entry in first-seen order. This is the
// only place tool call arguments are parsed.
func (e *Engine) finalize() ([]provider.ToolCall, []error) {
	var (
		done []provider.ToolCall
		errs []error
	)
	for i := range e.calls {
		acc := &e.calls[i]
		if acc.finalized {
			continue
		}
		acc.finalized = true

		call := provider.ToolCall{
			ID:        acc.id,
			Name:      string(acc.name),
			Arguments: string(acc.args),
		}
		if strings.TrimSpace(call.Arguments) == "" {
			call.Arguments = "{}"
		}

		var raw json.RawMessage
		if err := json.Unmarshal([]byte(call.Arguments), &raw); err != nil {
			corrupt := &provider.ToolArgumentsCorruptError{
				Index:     acc.index,
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
				Cause:     err,
			}
			e.errs = append(e.errs, corrupt)
			errs = append(errs, corrupt)
			e.opts.logger.Warn("tool call arguments are not valid JSON",
				"index", acc.index, "id", call.ID, "name", call.Name, "error", err)
			continue
		}

		e.toolCalls = append(e.toolCalls, call)
		done = append(done, call)
	}
	return done, errs
}

func finalizes(reason provider.FinishReason) bool {
	return reason == provider.FinishReasonStop || reason == provider.FinishReasonToolCalls
}
