package models

import "encoding/json"

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Names of the well-known system injections. The prompt builder inserts
// messages under these names and the compactor treats them specially.
const (
	NameSkill   = "pyopencode_skill"
	NameRules   = "pyopencode_rules"
	NameAgent   = "pyopencode_agent"
	NameSummary = "pyopencode_summary"
)

// ToolCall is an assistant's request to execute a named tool. ID is the
// join key between the request and the subsequent tool-role reply.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one entry in a session transcript. Content is a pointer
// because OpenAI-compatible APIs require null content on assistant
// messages that only carry tool calls.
type Message struct {
	Role             Role       `json:"role"`
	Content          *string    `json:"content"`
	Name             string     `json:"name,omitempty"`
	ToolCallID       string     `json:"tool_call_id,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
}

// Text returns the message content, or "" when content is null.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasToolCalls reports whether the message requests any tool executions.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// System builds a system-role message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

// SystemNamed builds a system-role message tagged with an injection name.
func SystemNamed(name, content string) Message {
	return Message{Role: RoleSystem, Name: name, Content: &content}
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// Assistant builds a plain assistant text message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: &content}
}

// AssistantToolCalls builds an assistant message that requests tool
// executions. Content is null per the tool-calling protocol.
func AssistantToolCalls(calls []ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// Tool builds a tool-role reply bound to a prior tool call.
func Tool(content, toolCallID string) Message {
	return Message{Role: RoleTool, Content: &content, ToolCallID: toolCallID}
}
