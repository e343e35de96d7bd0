package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// resumePendingToolCalls recovers a session that crashed between
// persisting an assistant tool-call message and answering it. Pending
// calls are executed and answered so the next prompt is protocol-clean.
//
// Recovery only proceeds when the replies would land contiguously after
// the owning assistant: a user or assistant message in between means
// the tail is not a half-finished tool block, and resuming would
// corrupt the ordering.
func (r *Runner) resumePendingToolCalls(ctx context.Context) error {
	msgs := r.Session.Messages()
	if len(msgs) == 0 {
		return nil
	}

	// Most recent assistant with tool calls; a user message first means
	// nothing after it can be pending.
	lastIdx := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].HasToolCalls() {
			lastIdx = i
			break
		}
		if msgs[i].Role == models.RoleUser {
			break
		}
	}
	if lastIdx < 0 {
		return nil
	}
	assistant := msgs[lastIdx]

	answered := make(map[string]bool)
	for j := lastIdx + 1; j < len(msgs); j++ {
		if msgs[j].Role != models.RoleTool {
			break
		}
		if msgs[j].ToolCallID != "" {
			answered[msgs[j].ToolCallID] = true
		}
	}

	var pending []models.ToolCall
	for _, tc := range assistant.ToolCalls {
		if tc.ID != "" && !answered[tc.ID] {
			pending = append(pending, tc)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	for j := lastIdx + 1; j < len(msgs); j++ {
		if msgs[j].Role != models.RoleTool {
			r.Events.Append("resume.aborted_non_tool_after_assistant", map[string]any{
				"assistant_index": lastIdx,
				"found_role":      string(msgs[j].Role),
				"found_index":     j,
			})
			return nil
		}
	}

	ids := make([]string, 0, len(pending))
	for _, tc := range pending {
		ids = append(ids, tc.ID)
	}
	r.Events.Append("resume.pending_tools", map[string]any{
		"count":           len(pending),
		"assistant_index": lastIdx,
		"tool_call_ids":   ids,
	})

	for _, tc := range pending {
		tool, ok := r.Tools.Get(tc.Name)
		if !ok {
			reply := fmt.Sprintf("Tool %s not found (resume).", tc.Name)
			if err := r.appendToolReply(reply, tc.ID); err != nil {
				return err
			}
			continue
		}

		spec := tool.Spec()
		args := tools.NormalizeArgs(tc.Arguments)
		preview := tools.Preview(args)

		if !r.Gate.Decide(spec.Permission, spec.Name, preview) {
			reply := fmt.Sprintf("Tool %s was denied by user permissions (resume).", spec.Name)
			if err := r.appendToolReply(reply, tc.ID); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		res := r.safeExecute(ctx, spec.Name, args)
		elapsed := time.Since(start)

		r.Events.Append("resume.tool_result", map[string]any{
			"tool":            spec.Name,
			"tool_call_id":    tc.ID,
			"is_error":        res.IsError,
			"elapsed_ms":      elapsed.Milliseconds(),
			"content_len":     len(res.Content),
			"content_preview": truncate(res.Content, 4000),
		})

		if err := r.appendToolReply(res.Content, tc.ID); err != nil {
			return err
		}
	}
	return nil
}
