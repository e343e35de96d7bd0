// Package rules resolves the project guidance injected into every
// prompt: the first AGENTS.md/RULES.md hit at global and project scope,
// plus any extra files named by the behavior config.
package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/workspace"
)

// Doc is one resolved rules file.
type Doc struct {
	Scope   string // global | project | extra
	Path    string
	Content string
}

// Bundle is the full resolved rule set.
type Bundle struct {
	Docs     []Doc
	Combined string
}

func globalCandidates() []string {
	dir, err := workspace.ConfigDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(dir, "AGENTS.md"),
		filepath.Join(dir, "RULES.md"),
	}
}

// ProjectCandidates lists the project-level rules files in lookup
// order. The REPL watches these for live reloads.
func ProjectCandidates(cwd string) []string {
	return []string{
		filepath.Join(cwd, "AGENTS.md"),
		filepath.Join(cwd, "RULES.md"),
		filepath.Join(cwd, ".opencode", "AGENTS.md"),
		filepath.Join(cwd, ".opencode", "RULES.md"),
	}
}

// Load resolves the rules for cwd. The first existing global candidate
// and the first existing project candidate are used; every extra file is
// included.
func Load(cwd string, extraFiles []string) Bundle {
	var docs []Doc

	for _, p := range globalCandidates() {
		if txt := readText(p); txt != "" {
			docs = append(docs, Doc{Scope: "global", Path: p, Content: txt})
			break
		}
	}
	for _, p := range ProjectCandidates(cwd) {
		if txt := readText(p); txt != "" {
			docs = append(docs, Doc{Scope: "project", Path: p, Content: txt})
			break
		}
	}
	for _, p := range extraFiles {
		if txt := readText(p); txt != "" {
			docs = append(docs, Doc{Scope: "extra", Path: p, Content: txt})
		}
	}

	return Bundle{Docs: docs, Combined: combine(docs)}
}

// combine renders each doc under a "[scope] path" header with a dash
// underline.
func combine(docs []Doc) string {
	var parts []string
	for _, d := range docs {
		header := "[" + d.Scope + "] " + d.Path
		parts = append(parts, header, strings.Repeat("-", len(header)), strings.TrimSpace(d.Content), "")
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func readText(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
