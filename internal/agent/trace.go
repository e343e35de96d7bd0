package agent

import (
	"encoding/json"
	"fmt"

	"github.com/waysongjiang/pyopencode/internal/llm"
)

// traceStep prints the prompt and response of one step.
func (r *Runner) traceStep(step int, wire []llm.WireMessage, turn *llm.AssistantTurn) {
	w := r.out()
	fmt.Fprintf(w, "\n===== step %d =====\n", step+1)

	if input, err := json.MarshalIndent(wire, "", "  "); err == nil {
		fmt.Fprintf(w, "--- llm input (messages) ---\n%s\n", truncate(string(input), 4000))
	}

	output := map[string]any{
		"text":              turn.Text,
		"reasoning_content": turn.ReasoningContent,
		"tool_calls":        toolCallData(turn.ToolCalls),
	}
	if out, err := json.MarshalIndent(output, "", "  "); err == nil {
		fmt.Fprintf(w, "--- llm output ---\n%s\n", truncate(string(out), 4000))
	}
}

// traceToolResult prints one tool outcome.
func (r *Runner) traceToolResult(name string, isError bool, content string) {
	status := "ok"
	if isError {
		status = "error"
	}
	preview := content
	if len(preview) > 1200 {
		preview = preview[:1200] + "..."
	}
	fmt.Fprintf(r.out(), "--- tool %s (%s) ---\n%s\n", name, status, preview)
}
