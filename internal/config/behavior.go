// Package config loads the behavior config: JSON (JSON5 accepted) files
// merged global < project < explicit path, governing the default agent,
// permission rules, agent profiles, command templates, MCP servers and
// extra rules files.
package config

import (
	"github.com/waysongjiang/pyopencode/internal/commands"
	"github.com/waysongjiang/pyopencode/internal/mcp"
	"github.com/waysongjiang/pyopencode/internal/permissions"
)

// AgentConfig is one agent entry from the behavior config. It merges
// over the builtin profile of the same name.
type AgentConfig struct {
	Name                string            `json:"-"`
	Description         string            `json:"description,omitempty"`
	SystemPrompt        string            `json:"system_prompt,omitempty"`
	MaxSteps            int               `json:"max_steps,omitempty"`
	Model               string            `json:"model,omitempty"`
	PermissionOverrides map[string]string `json:"permission_overrides,omitempty"`
}

// Behavior is the merged behavior config.
type Behavior struct {
	DefaultAgent string                      `json:"default_agent,omitempty"`
	Permissions  []permissions.Rule          `json:"permissions,omitempty"`
	Agents       map[string]AgentConfig      `json:"agents,omitempty"`
	Commands     map[string]commands.Spec    `json:"commands,omitempty"`
	MCPServers   map[string]mcp.ServerConfig `json:"mcp_servers,omitempty"`
	RulesFiles   []string                    `json:"rules_files,omitempty"`

	// LoadedFrom is the last file that contributed to the merge, for the
	// startup banner.
	LoadedFrom string `json:"-"`
}

// DefaultBehavior returns the config used when no file is found.
func DefaultBehavior() Behavior {
	return Behavior{
		DefaultAgent: "general",
		Agents:       map[string]AgentConfig{},
		Commands:     map[string]commands.Spec{},
		MCPServers:   map[string]mcp.ServerConfig{},
	}
}

// MCPServerList returns the configured servers as a slice with names
// filled in, dropping entries without a command.
func (b Behavior) MCPServerList() []mcp.ServerConfig {
	if len(b.MCPServers) == 0 {
		return nil
	}
	out := make([]mcp.ServerConfig, 0, len(b.MCPServers))
	for _, name := range sortedKeys(b.MCPServers) {
		cfg := b.MCPServers[name]
		if len(cfg.Command) == 0 {
			continue
		}
		cfg.Name = name
		out = append(out, cfg)
	}
	return out
}
