package provider

import "encoding/json"

// Request is a provider-agnostic chat request. It is treated as immutable
// once handed to a provider.
type Request struct {
	Model      string
	Messages   []Message
	Tools      []ToolSpec
	ToolChoice *ToolChoice

	// Stream selects the SSE wire mode.
	Stream bool

	// IncludeUsage asks a streaming endpoint to send a final usage chunk.
	IncludeUsage bool

	// Sampling parameters, passed through untouched when set.
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	Seed             *int
	StopSequences    []string
	PresencePenalty  *float64
	FrequencyPenalty *float64

	JSONSchema *JSONSchema // For structured output
}

// Message represents a single message in the conversation.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // Assistant turns that requested tools
	ToolCallID string     // When Role == RoleTool
}

// Role represents the message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolSpec describes a function the model may call. Parameters is a JSON
// Schema document and is forwarded verbatim.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolChoiceMode controls whether and how the model calls tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
)

// ToolChoice selects a mode, or a single function when Function is set.
type ToolChoice struct {
	Mode     ToolChoiceMode
	Function string
}

// JSONSchema represents a JSON Schema for structured output.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// Response is the aggregated result of one request, streamed or not.
type Response struct {
	ID           string
	Model        string
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        Usage

	// PendingToolCalls holds tool calls that were still being assembled when
	// the stream stopped. Their arguments have not been validated.
	PendingToolCalls []ToolCall

	// Errors collects recoverable problems (malformed frames, corrupt tool
	// arguments). The rest of the response is still usable.
	Errors []error

	// Err is the terminal error, if the response is only partial.
	Err error
}

// HasToolCalls reports whether the model requested any tools.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
)

// ParseFinishReason maps a wire finish_reason onto a FinishReason. The
// legacy "function_call" becomes tool_calls; unknown values are kept verbatim.
func ParseFinishReason(s string) FinishReason {
	if s == "function_call" {
		return FinishReasonToolCalls
	}
	return FinishReason(s)
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON string
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
