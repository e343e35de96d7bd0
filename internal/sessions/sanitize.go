package sessions

import "github.com/waysongjiang/pyopencode/pkg/models"

// CleanInvalidToolMessages drops tool messages that violate the
// tool-calling protocol: a tool message must sit in the contiguous block
// after an assistant message whose tool_calls list its non-empty
// tool_call_id, and each id is answered at most once. Everything else
// passes through unchanged. Returns the cleaned transcript and the
// number of messages removed.
//
// The operation is idempotent: cleaning a cleaned transcript removes
// nothing.
func CleanInvalidToolMessages(msgs []models.Message) ([]models.Message, int) {
	cleaned := make([]models.Message, 0, len(msgs))
	removed := 0

	// Ids of the most recent assistant's tool calls not yet answered.
	// Nil once any non-tool message interrupts the block.
	var pending map[string]bool

	for _, m := range msgs {
		switch {
		case m.Role == models.RoleTool:
			if m.ToolCallID == "" || !pending[m.ToolCallID] {
				removed++
				continue
			}
			delete(pending, m.ToolCallID)
			cleaned = append(cleaned, m)

		case m.HasToolCalls():
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
	return cleaned, removed
}

// Sanitize runs CleanInvalidToolMessages against the store's in-memory
// transcript and installs the result when anything was dropped. Returns
// the number of removed messages and the kept count.
func (s *Store) Sanitize() (removed, kept int) {
	cleaned, removed := CleanInvalidToolMessages(s.Messages())
	if removed > 0 {
		s.Replace(cleaned)
	}
	return removed, len(cleaned)
}
