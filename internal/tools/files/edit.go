package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// EditTool replaces a 1-based inclusive line range in a file.
// start_line == len(lines)+1 appends at EOF.
type EditTool struct{}

func (t *EditTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "edit",
		Description: "Replace a line range in a file. Lines are 1-based inclusive. This is deterministic and safe.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path relative to cwd.",
				},
				"start_line": map[string]any{
					"type":        "integer",
					"description": "1-based start line (inclusive).",
				},
				"end_line": map[string]any{
					"type":        "integer",
					"description": "1-based end line (inclusive).",
				},
				"new_text": map[string]any{
					"type":        "string",
					"description": "Replacement text for the range.",
				},
			},
			"required": []string{"path", "start_line", "end_line", "new_text"},
		}),
		Permission: "edit",
	}
}

func (t *EditTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
		NewText   string `json:"new_text"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	return applyRangeEdit(tctx, input.Path, input.StartLine, input.EndLine, input.NewText)
}

// applyRangeEdit holds the shared edit logic so multiedit can reuse it.
func applyRangeEdit(tctx tools.Context, path string, start, end int, newText string) tools.Result {
	resolved, err := Resolver{Root: tctx.Cwd}.Resolve(path)
	if err != nil {
		return tools.Errorf("%v", err)
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return tools.Errorf("File not found: %s", path)
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Errorf("File not found: %s", path)
	}
	text := string(raw)
	lines := splitLines(text)

	if start < 1 || end < start || start > len(lines)+1 {
		return tools.Errorf("Invalid line range %d-%d for file with %d lines.", start, end, len(lines))
	}
	// end == len(lines)+1 acts as an append at EOF.
	if end > len(lines) {
		end = len(lines)
	}

	merged := make([]string, 0, len(lines))
	merged = append(merged, lines[:start-1]...)
	merged = append(merged, splitLines(newText)...)
	merged = append(merged, lines[end:]...)

	out := strings.Join(merged, "\n")
	if strings.HasSuffix(text, "\n") {
		out += "\n"
	}
	if err := os.WriteFile(resolved, []byte(out), 0o644); err != nil {
		return tools.Errorf("write file: %v", err)
	}
	return tools.Text(fmt.Sprintf("Edited %s: replaced lines %d-%d.", path, start, end))
}
