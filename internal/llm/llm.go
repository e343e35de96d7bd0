// Package llm defines the provider-neutral chat types and the Provider
// interface implemented by each wire adapter.
package llm

import (
	"context"
	"encoding/json"

	"github.com/waysongjiang/pyopencode/pkg/models"
)

// DefaultTemperature is applied when a request does not set one.
const DefaultTemperature float32 = 0.2

// AssistantTurn is one model response: final text, requested tool calls,
// or both, plus any reasoning text the provider surfaced.
type AssistantTurn struct {
	Text             string
	ToolCalls        []models.ToolCall
	ReasoningContent string
}

// WireMessage is a chat message in provider wire form. Content is a
// pointer because an assistant message that only requests tools carries
// an explicit null content. ReasoningContent is a pointer for a similar
// reason: nil means the field is omitted, a pointer to "" means it is
// echoed empty (some endpoints require the field on every assistant
// message once reasoning is in play).
type WireMessage struct {
	Role             string            `json:"role"`
	Content          *string           `json:"content"`
	Name             string            `json:"name,omitempty"`
	ToolCallID       string            `json:"tool_call_id,omitempty"`
	ToolCalls        []models.ToolCall `json:"tool_calls,omitempty"`
	ReasoningContent *string           `json:"reasoning_content,omitempty"`
}

// Text returns the message content, or "" when content is null.
func (m WireMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// ToolDef describes one callable tool advertised to the model.
// Parameters is a JSON Schema object.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// StreamDelta is one incremental chunk surfaced while streaming. Exactly
// one of the fields is set per delta.
type StreamDelta struct {
	Text      string
	Reasoning string
}

// Request is a single chat completion request.
type Request struct {
	Messages    []WireMessage
	Tools       []ToolDef
	Temperature float32
}

// Provider is implemented by each model wire adapter. Complete blocks
// until the full response is available; Stream invokes onDelta for each
// chunk and returns the accumulated turn.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (*AssistantTurn, error)
	Stream(ctx context.Context, req Request, onDelta func(StreamDelta)) (*AssistantTurn, error)
}

// ModelOverrider is implemented by providers that can produce a copy of
// themselves bound to a different model.
type ModelOverrider interface {
	WithModel(model string) Provider
}

// WithModel returns p bound to model when the provider supports
// overriding, otherwise p unchanged. An empty model is a no-op.
func WithModel(p Provider, model string) Provider {
	if model == "" || model == p.Model() {
		return p
	}
	if o, ok := p.(ModelOverrider); ok {
		return o.WithModel(model)
	}
	return p
}

// normalizeArguments coerces accumulated tool-call arguments into a
// valid JSON document, falling back to an empty object for anything the
// model garbled.
func normalizeArguments(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage("{}")
	}
	if !json.Valid([]byte(raw)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
