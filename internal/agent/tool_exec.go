package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/waysongjiang/pyopencode/internal/compaction"
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

var errToolWithoutAssistant = errors.New("protocol violation: tool message without matching assistant tool_call")

// assertCanAppendTool guards the session protocol before a tool reply
// is persisted: walking back over the current tool block must land on
// an assistant whose tool_calls include this id, and the id must not
// already be answered in that block.
func (r *Runner) assertCanAppendTool(toolCallID string) error {
	if toolCallID == "" {
		return errors.New("protocol violation: tool message missing tool_call_id")
	}
	msgs := r.Session.Messages()
	answered := false
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == models.RoleTool {
			if m.ToolCallID == toolCallID {
				answered = true
			}
			continue
		}
		if m.HasToolCalls() && !answered {
			for _, tc := range m.ToolCalls {
				if tc.ID == toolCallID {
					return nil
				}
			}
		}
		return errToolWithoutAssistant
	}
	return errToolWithoutAssistant
}

// appendToolReply persists one tool-role message after the protocol
// check.
func (r *Runner) appendToolReply(content, toolCallID string) error {
	if err := r.assertCanAppendTool(toolCallID); err != nil {
		return err
	}
	return r.Session.Append(models.Tool(content, toolCallID))
}

// executeToolCalls runs a step's tool calls sequentially. Every call
// gets a tool reply, including missing tools and denied permissions, so
// the transcript never leaves a call unanswered.
func (r *Runner) executeToolCalls(ctx context.Context, step int, calls []models.ToolCall, policy compaction.Policy) error {
	for _, tc := range calls {
		tool, ok := r.Tools.Get(tc.Name)
		if !ok {
			r.Events.Append("tool.missing", map[string]any{
				"step":         step,
				"tool":         tc.Name,
				"tool_call_id": tc.ID,
			})
			if err := r.appendToolReply(fmt.Sprintf("Tool %s not found.", tc.Name), tc.ID); err != nil {
				return err
			}
			continue
		}

		spec := tool.Spec()
		args := tools.NormalizeArgs(tc.Arguments)
		preview := tools.Preview(args)

		r.Events.Append("tool.call", map[string]any{
			"step":           step,
			"tool":           spec.Name,
			"permission_key": spec.Permission,
			"tool_call_id":   tc.ID,
			"args":           preview,
		})

		if !r.Gate.Decide(spec.Permission, spec.Name, preview) {
			r.Events.Append("tool.denied", map[string]any{
				"step":         step,
				"tool":         spec.Name,
				"tool_call_id": tc.ID,
			})
			denied := fmt.Sprintf("Tool %s was denied by user permissions.", spec.Name)
			if err := r.appendToolReply(denied, tc.ID); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		res := r.safeExecute(ctx, spec.Name, args)
		elapsed := time.Since(start)

		r.Events.Append("tool.result", map[string]any{
			"step":            step,
			"tool":            spec.Name,
			"tool_call_id":    tc.ID,
			"is_error":        res.IsError,
			"elapsed_ms":      elapsed.Milliseconds(),
			"content_len":     len(res.Content),
			"content_preview": truncate(res.Content, 4000),
		})

		content := res.Content
		if policy.MaxToolResultChars > 0 && len(content) > policy.MaxToolResultChars {
			content = compaction.TruncateMiddle(content, policy.MaxToolResultChars)
		}

		if r.Trace {
			r.traceToolResult(spec.Name, res.IsError, content)
		}

		if err := r.appendToolReply(content, tc.ID); err != nil {
			return err
		}
	}
	return nil
}

// safeExecute dispatches through the registry and converts panics into
// error results so a broken tool cannot kill the turn.
func (r *Runner) safeExecute(ctx context.Context, name string, args json.RawMessage) (res tools.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = tools.Errorf("Tool %s exception: %v", name, rec)
		}
	}()
	tctx := tools.Context{Cwd: r.Cwd, SessionID: r.Session.SessionID()}
	return r.Tools.Execute(ctx, tctx, name, args)
}
