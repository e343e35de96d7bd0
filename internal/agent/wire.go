package agent

import (
	"encoding/json"
	"fmt"

	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// toolDefs converts registry specs into the provider tool list.
func toolDefs(specs []tools.Spec) []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(specs))
	for _, s := range specs {
		out = append(out, llm.ToolDef{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
		})
	}
	return out
}

// cleanWire drops tool messages the protocol would reject: each tool
// message must sit in the contiguous block after an assistant whose
// tool_calls list its id, answered at most once. The builder works from
// a sanitized session so this is a final guard, not the main repair.
func cleanWire(msgs []llm.WireMessage) []llm.WireMessage {
	cleaned := make([]llm.WireMessage, 0, len(msgs))
	var pending map[string]bool
	for _, m := range msgs {
		switch {
		case m.Role == "tool":
			if m.ToolCallID == "" || !pending[m.ToolCallID] {
				continue
			}
			delete(pending, m.ToolCallID)
			cleaned = append(cleaned, m)

		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				if tc.ID != "" {
					pending[tc.ID] = true
				}
			}
			cleaned = append(cleaned, m)

		default:
			pending = nil
			cleaned = append(cleaned, m)
		}
	}
	return cleaned
}

// validateWire rejects outgoing message lists that would be refused by
// the provider: tool messages outside a tool block or without an id.
func validateWire(msgs []llm.WireMessage) error {
	inBlock := false
	for i, m := range msgs {
		if m.Role == "tool" {
			if !inBlock {
				return fmt.Errorf("invalid messages: tool message at index %d has no preceding assistant tool_calls", i)
			}
			if m.ToolCallID == "" {
				return fmt.Errorf("invalid messages: tool message at index %d missing tool_call_id", i)
			}
			continue
		}
		inBlock = m.Role == "assistant" && len(m.ToolCalls) > 0
	}
	return nil
}

// promptChars estimates prompt size for the llm.request event.
func promptChars(msgs []llm.WireMessage) int {
	total := 0
	for _, m := range msgs {
		if m.Content != nil {
			total += len(*m.Content)
		}
		if m.ReasoningContent != nil {
			total += len(*m.ReasoningContent)
		}
		if len(m.ToolCalls) > 0 {
			if raw, err := json.Marshal(m.ToolCalls); err == nil {
				total += len(raw)
			}
		}
	}
	return total
}

// toolCallData renders tool calls for the llm.response event.
func toolCallData(calls []models.ToolCall) []map[string]any {
	out := make([]map[string]any, 0, len(calls))
	for _, tc := range calls {
		out = append(out, map[string]any{
			"id":        tc.ID,
			"name":      tc.Name,
			"arguments": tools.NormalizeArgs(tc.Arguments),
		})
	}
	return out
}
