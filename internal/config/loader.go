package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/waysongjiang/pyopencode/internal/workspace"
)

// GlobalCandidates returns the global config files. Every existing one
// contributes to the merge, in order.
func GlobalCandidates() []string {
	dir, err := workspace.ConfigDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(dir, "pyopencode.json"),
		filepath.Join(dir, "opencode.json"),
	}
}

// ProjectCandidates returns the project-level config files. Only the
// first existing one contributes.
func ProjectCandidates(cwd string) []string {
	return []string{
		filepath.Join(cwd, ".pyopencode.json"),
		filepath.Join(cwd, "pyopencode.json"),
		filepath.Join(cwd, ".opencode.json"),
		filepath.Join(cwd, "opencode.json"),
	}
}

// Load merges the behavior config in order global < project < explicit.
// Missing or unparseable files are skipped; the result is always usable.
func Load(cwd, explicit string) Behavior {
	merged := map[string]any{}
	loadedFrom := ""

	for _, p := range GlobalCandidates() {
		if raw := loadFile(p); raw != nil {
			merged = mergeMaps(merged, raw)
			loadedFrom = p
		}
	}

	for _, p := range ProjectCandidates(cwd) {
		if raw := loadFile(p); raw != nil {
			merged = mergeMaps(merged, raw)
			loadedFrom = p
			break
		}
	}

	if strings.TrimSpace(explicit) != "" {
		p := expandUser(explicit)
		raw := loadFile(p)
		if raw == nil {
			slog.Warn("behavior config not loaded", "path", p)
		} else {
			merged = mergeMaps(merged, raw)
			loadedFrom = p
		}
	}

	b := decodeBehavior(merged, cwd)
	b.LoadedFrom = loadedFrom
	return b
}

// loadFile parses one JSON/JSON5 object file, returning nil when the
// file is missing, unreadable or not an object.
func loadFile(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("behavior config unreadable", "path", path, "error", err)
		}
		return nil
	}
	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		slog.Warn("behavior config does not parse", "path", path, "error", err)
		return nil
	}
	return raw
}

func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, value := range src {
		if valueMap, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeMaps(existing, valueMap)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}

// decodeBehavior converts the merged raw map into a Behavior, section by
// section so one malformed section does not poison the rest.
func decodeBehavior(merged map[string]any, cwd string) Behavior {
	b := DefaultBehavior()

	var defaultAgent string
	assign(merged, "default_agent", &defaultAgent)
	if s := strings.TrimSpace(defaultAgent); s != "" {
		b.DefaultAgent = s
	}

	assign(merged, "permissions", &b.Permissions)
	assign(merged, "agents", &b.Agents)
	for name, a := range b.Agents {
		a.Name = name
		b.Agents[name] = a
	}
	assign(merged, "commands", &b.Commands)
	for name, c := range b.Commands {
		c.Name = name
		b.Commands[name] = c
	}

	// Both spellings are accepted; snake_case wins when non-empty.
	assign(merged, "mcp_servers", &b.MCPServers)
	if len(b.MCPServers) == 0 {
		assign(merged, "mcpServers", &b.MCPServers)
	}
	for name, s := range b.MCPServers {
		s.Name = name
		b.MCPServers[name] = s
	}

	var rulesFiles []string
	assign(merged, "rules_files", &rulesFiles)
	for _, f := range rulesFiles {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		p := expandUser(f)
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		b.RulesFiles = append(b.RulesFiles, p)
	}

	return b
}

// assign decodes merged[key] into dst via a JSON round trip, logging and
// leaving dst untouched when the shape does not fit.
func assign[T any](merged map[string]any, key string, dst *T) {
	raw, ok := merged[key]
	if !ok || raw == nil {
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		slog.Warn("behavior config section skipped", "key", key, "error", err)
		return
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("behavior config section skipped", "key", key, "error", err)
		return
	}
	*dst = v
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
