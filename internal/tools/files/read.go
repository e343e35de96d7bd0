package files

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// ReadTool reads a text file, optionally limited to a line range.
type ReadTool struct{}

func (t *ReadTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "read",
		Description: "Read a text file. Optionally limit to a line range.",
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
				"max_chars": map[string]any{
					"type":    "integer",
					"default": 40000,
				},
			},
			"required": []string{"path"},
		}),
		Permission: "read",
	}
}

func (t *ReadTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Path      string `json:"path"`
		StartLine *int   `json:"start_line"`
		EndLine   *int   `json:"end_line"`
		MaxChars  *int   `json:"max_chars"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}

	resolved, err := Resolver{Root: tctx.Cwd}.Resolve(input.Path)
	if err != nil {
		return tools.Errorf("%v", err)
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return tools.Errorf("File not found: %s", input.Path)
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Errorf("File not found: %s", input.Path)
	}
	lines := splitLines(string(raw))

	excerpt := lines
	if input.StartLine != nil || input.EndLine != nil {
		s := 1
		if input.StartLine != nil && *input.StartLine != 0 {
			s = *input.StartLine
		}
		e := len(lines)
		if input.EndLine != nil && *input.EndLine != 0 {
			e = *input.EndLine
		}
		if s < 1 {
			s = 1
		}
		if e > len(lines) {
			e = len(lines)
		}
		if e < s {
			excerpt = nil
		} else {
			excerpt = lines[s-1 : e]
		}
	}

	out := strings.Join(excerpt, "\n")
	maxChars := 40000
	if input.MaxChars != nil {
		maxChars = *input.MaxChars
	}
	if maxChars < 0 {
		maxChars = 0
	}
	if len(out) > maxChars {
		out = out[:maxChars] + "\n... (truncated)"
	}
	return tools.Text(out)
}
