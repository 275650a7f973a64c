// Package delta classifies streaming chat completion chunks into typed
// deltas. Decoding is pure: the same payload always yields the same deltas,
// and nothing downstream of this package looks at raw JSON.
package delta

import (
	"github.com/i2y/oaicompat/provider"
)

// Kind names a delta variant.
type Kind string

const (
	KindContent  Kind = "content"
	KindToolCall Kind = "tool_call"
	KindFinish   Kind = "finish"
	KindUsage    Kind = "usage"
	KindEnd      Kind = "end"
)

// Delta is one incremental fragment of a streaming response. The set of
// implementations is closed: Content, ToolCall, Finish, Usage and End.
type Delta interface {
	Kind() Kind
	sealed()
}

// Content carries a text fragment.
type Content struct {
	Text string
}

// ToolCall carries one fragment of the tool call at Index. ID is only sent
// on the first fragment; Name and Arguments are pieces to concatenate.
type ToolCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Finish carries the choice's finish_reason. Err is set when the endpoint
// reported an error object in place of a chunk.
type Finish struct {
	Reason provider.FinishReason
	Err    error
}

// Usage carries token accounting, sent in a final chunk when requested.
type Usage struct {
	Usage provider.Usage
}

// End marks the [DONE] sentinel: no further deltas follow.
type End struct{}

func (Content) Kind() Kind  { return KindContent }
func (ToolCall) Kind() Kind { return KindToolCall }
func (Finish) Kind() Kind   { return KindFinish }
func (Usage) Kind() Kind    { return KindUsage }
func (End) Kind() Kind      { return KindEnd }

func (Content) sealed()  {}
func (ToolCall) sealed() {}
func (Finish) sealed()   {}
func (Usage) sealed()    {}
func (End) sealed()      {}
