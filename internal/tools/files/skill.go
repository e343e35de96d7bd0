package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// SkillTool loads a SKILL.md so the model can follow project-specific
// instructions on demand.
type SkillTool struct{}

func (t *SkillTool) Spec() tools.Spec {
	return tools.Spec{
		Name: "skill",
		Description: "Load a SKILL.md (or any markdown file) and return its contents so the assistant can follow it. " +
			"If no path is provided, defaults to ./SKILL.md under the working directory.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the skill markdown file (default: SKILL.md).",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": "Max characters to return (default 20000).",
				},
			},
		}),
		Permission: "read",
	}
}

func (t *SkillTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Path     string `json:"path"`
		MaxChars int    `json:"max_chars"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	rel := input.Path
	if rel == "" {
		rel = "SKILL.md"
	}
	maxChars := input.MaxChars
	if maxChars <= 0 {
		maxChars = 20000
	}

	rootAbs, err := filepath.Abs(tctx.Cwd)
	if err != nil {
		return tools.Errorf("skill failed: %v", err)
	}
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(rootAbs, target)
	}
	target = filepath.Clean(target)

	if _, err := (Resolver{Root: tctx.Cwd}).Resolve(rel); err != nil {
		return tools.Errorf("Skill path escapes cwd: %s", target)
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return tools.Errorf("Skill file not found: %s", target)
	}
	raw, err := os.ReadFile(target)
	if err != nil {
		return tools.Errorf("skill failed: %v", err)
	}

	text := string(raw)
	if len(text) > maxChars {
		text = text[:maxChars] + "\n\n... (truncated) ..."
	}
	return tools.Text(text)
}
