package files

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// MultiEditTool applies several line-range edits in one call. The
// ranges are validated up front, then applied bottom to top so earlier
// line numbers stay stable.
type MultiEditTool struct{}

type rangeEdit struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	NewText   string `json:"new_text"`
}

func (t *MultiEditTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "multiedit",
		Description: "Apply multiple line-range edits in a single call. Edits must be non-overlapping and sorted.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path relative to cwd.",
				},
				"edits": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"start_line": map[string]any{"type": "integer"},
							"end_line":   map[string]any{"type": "integer"},
							"new_text":   map[string]any{"type": "string"},
						},
						"required": []string{"start_line", "end_line", "new_text"},
					},
				},
			},
			"required": []string{"path", "edits"},
		}),
		Permission: "edit",
	}
}

func (t *MultiEditTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Path  string      `json:"path"`
		Edits []rangeEdit `json:"edits"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	if len(input.Edits) == 0 {
		return tools.Errorf("edits must be a non-empty list")
	}
	if !sort.SliceIsSorted(input.Edits, func(i, j int) bool {
		return input.Edits[i].StartLine < input.Edits[j].StartLine
	}) {
		return tools.Errorf("edits must be sorted by start_line")
	}
	for i := 1; i < len(input.Edits); i++ {
		if input.Edits[i].StartLine <= input.Edits[i-1].EndLine {
			return tools.Errorf("edits must not overlap")
		}
	}

	for i := len(input.Edits) - 1; i >= 0; i-- {
		e := input.Edits[i]
		res := applyRangeEdit(tctx, input.Path, e.StartLine, e.EndLine, e.NewText)
		if res.IsError {
			return res
		}
	}
	return tools.Text(fmt.Sprintf("Applied %d edits to %s.", len(input.Edits), input.Path))
}
