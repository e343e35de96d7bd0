package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// GrepTool searches file contents line by line.
type GrepTool struct{}

func (t *GrepTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "grep",
		Description: "Search for a pattern in files. Returns matching lines with line numbers.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regex (default) or literal string if regex=false.",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "File or directory to search (relative to cwd). Default '.'",
				},
				"regex": map[string]any{
					"type":    "boolean",
					"default": true,
				},
				"include": map[string]any{
					"type":        "string",
					"description": "Optional glob filter like '*.py'.",
				},
				"max_matches": map[string]any{
					"type":    "integer",
					"default": 200,
				},
			},
			"required": []string{"pattern"},
		}),
		Permission: "read",
	}
}

func (t *GrepTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Pattern    string `json:"pattern"`
		Path       string `json:"path"`
		Regex      *bool  `json:"regex"`
		Include    string `json:"include"`
		MaxMatches *int   `json:"max_matches"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	searchPath := input.Path
	if strings.TrimSpace(searchPath) == "" {
		searchPath = "."
	}
	isRegex := input.Regex == nil || *input.Regex
	maxMatches := 200
	if input.MaxMatches != nil && *input.MaxMatches > 0 {
		maxMatches = *input.MaxMatches
	}

	resolver := Resolver{Root: tctx.Cwd}
	target, err := resolver.Resolve(searchPath)
	if err != nil {
		return tools.Errorf("%v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return tools.Errorf("Path not found: %s", searchPath)
	}

	var rx *regexp.Regexp
	if isRegex {
		rx, err = regexp.Compile(input.Pattern)
		if err != nil {
			return tools.Errorf("Invalid regex: %v", err)
		}
	}

	var fileList []string
	if !info.IsDir() {
		fileList = []string{target}
	} else {
		_ = filepath.WalkDir(target, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			if input.Include != "" && !matchInclude(p, input.Include) {
				return nil
			}
			fileList = append(fileList, p)
			return nil
		})
	}

	var out []string
	for _, f := range fileList {
		raw, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		for i, line := range splitLines(string(raw)) {
			hit := false
			if rx != nil {
				hit = rx.MatchString(line)
			} else {
				hit = strings.Contains(line, input.Pattern)
			}
			if !hit {
				continue
			}
			out = append(out, fmt.Sprintf("%s:%d: %s", resolver.Rel(f), i+1, line))
			if len(out) >= maxMatches {
				return tools.Text(strings.Join(out, "\n"))
			}
		}
	}
	if len(out) == 0 {
		return tools.Text("(no matches)")
	}
	return tools.Text(strings.Join(out, "\n"))
}

// matchInclude matches a glob against the trailing components of a
// path: "*.py" matches any file with that name, "src/*.py" requires
// the parent directory too.
func matchInclude(p, include string) bool {
	patParts := strings.Split(filepath.ToSlash(include), "/")
	pathParts := strings.Split(filepath.ToSlash(p), "/")
	if len(patParts) > len(pathParts) {
		return false
	}
	tail := pathParts[len(pathParts)-len(patParts):]
	for i, pat := range patParts {
		ok, err := path.Match(pat, tail[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}
