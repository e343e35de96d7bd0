package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// WriteTool creates or overwrites a file.
type WriteTool struct{}

func (t *WriteTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "write",
		Description: "Create or overwrite a file with given content.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File path relative to cwd.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full file content.",
				},
				"mkdirs": map[string]any{
					"type":        "boolean",
					"default":     true,
					"description": "Create parent directories if needed.",
				},
			},
			"required": []string{"path", "content"},
		}),
		Permission: "edit",
	}
}

func (t *WriteTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Mkdirs  *bool  `json:"mkdirs"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}

	resolved, err := Resolver{Root: tctx.Cwd}.Resolve(input.Path)
	if err != nil {
		return tools.Errorf("%v", err)
	}
	if input.Mkdirs == nil || *input.Mkdirs {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return tools.Errorf("create directory: %v", err)
		}
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return tools.Errorf("write file: %v", err)
	}
	return tools.Text(fmt.Sprintf("Wrote %s (%d chars).", input.Path, utf8.RuneCountInString(input.Content)))
}
