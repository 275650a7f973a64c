package llm

import "github.com/i2y/oaicompat/provider"

// Message is an alias for provider.Message.
type Message = provider.Message

// Role is an alias for provider.Role.
type Role = provider.Role

const (
	RoleSystem    = provider.RoleSystem
	RoleUser      = provider.RoleUser
	RoleAssistant = provider.RoleAssistant
	RoleTool      = provider.RoleTool
)

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantMessageWithToolCalls records an assistant turn that requested
// tools. Content may be empty.
func AssistantMessageWithToolCalls(content string, toolCalls []ToolCall) Message {
	calls := make([]ToolCall, len(toolCalls))
	copy(calls, toolCalls)
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage answers the tool call with the given id.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
