// Package agents defines the agent profiles selectable per run: five
// builtins plus custom profiles merged in from the behavior config.
package agents

import (
	"sort"

	"github.com/waysongjiang/pyopencode/internal/config"
	"github.com/waysongjiang/pyopencode/internal/permissions"
)

// Profile describes one agent mode. MaxSteps and Model of zero value
// defer to the command-line defaults; PermissionOverrides adjust the
// class defaults before behavior rules and CLI flags apply.
type Profile struct {
	Name                string
	Description         string
	SystemPrompt        string
	MaxSteps            int
	Model               string
	PermissionOverrides map[string]string
}

// Prompts stay short; rules and skill text are injected separately at
// prompt build time.
const basePrompt = "You are a local coding agent. Use tools to read files and run commands; don't fabricate outputs."

func builtinProfiles() []Profile {
	return []Profile{
		{
			Name:                "general",
			Description:         "General assistant (balanced).",
			SystemPrompt:        basePrompt,
			PermissionOverrides: map[string]string{},
		},
		{
			Name:         "plan",
			Description:  "Read-only planning: produce a step-by-step plan without editing or running commands.",
			SystemPrompt: basePrompt + "\n\nMode: PLAN ONLY. Do not modify files or run commands with side effects. Produce a concrete step-by-step plan.",
			PermissionOverrides: map[string]string{
				"edit": "deny",
				"bash": "deny",
			},
		},
		{
			Name:         "explore",
			Description:  "Read-only exploration: inspect repository, locate relevant code, summarize findings.",
			SystemPrompt: basePrompt + "\n\nMode: EXPLORE. Focus on reading files and summarizing structure. Avoid edits.",
			PermissionOverrides: map[string]string{
				"edit": "deny",
				"bash": "deny",
			},
		},
		{
			Name:         "build",
			Description:  "Implement changes (edits allowed) but avoid running shell commands unless necessary.",
			SystemPrompt: basePrompt + "\n\nMode: BUILD. Make careful edits and verify with reads. Prefer minimal diffs.",
			PermissionOverrides: map[string]string{
				"edit": "allow",
				"bash": "ask",
			},
		},
		{
			Name:         "run",
			Description:  "Execute tests/build steps (bash allowed) and implement fixes.",
			SystemPrompt: basePrompt + "\n\nMode: RUN. You may run commands to test and verify changes.",
			PermissionOverrides: map[string]string{
				"edit": "allow",
				"bash": "allow",
			},
		},
	}
}

// Registry resolves agent names to profiles.
type Registry struct {
	profiles     map[string]Profile
	defaultAgent string
}

// NewRegistry builds the registry from the builtins plus the behavior
// config: config agents replace builtins of the same name, and invalid
// permission override values are dropped.
func NewRegistry(behavior *config.Behavior) *Registry {
	profiles := make(map[string]Profile)
	for _, p := range builtinProfiles() {
		profiles[p.Name] = p
	}
	defaultAgent := "general"

	if behavior != nil {
		if behavior.DefaultAgent != "" {
			defaultAgent = behavior.DefaultAgent
		}
		for name, ac := range behavior.Agents {
			overrides := make(map[string]string)
			for k, v := range ac.PermissionOverrides {
				if permissions.ValidDecision(v) {
					overrides[k] = v
				}
			}
			desc := ac.Description
			if desc == "" {
				desc = "Custom agent: " + name
			}
			profiles[name] = Profile{
				Name:                name,
				Description:         desc,
				SystemPrompt:        ac.SystemPrompt,
				MaxSteps:            ac.MaxSteps,
				Model:               ac.Model,
				PermissionOverrides: overrides,
			}
		}
	}

	return &Registry{profiles: profiles, defaultAgent: defaultAgent}
}

// Names lists known agent names sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefaultAgent is the name used when a run requests no agent.
func (r *Registry) DefaultAgent() string {
	return r.defaultAgent
}

// Get resolves name, falling back to the default agent and then to
// general so a run always has a profile.
func (r *Registry) Get(name string) Profile {
	if p, ok := r.profiles[name]; ok {
		return p
	}
	if p, ok := r.profiles[r.defaultAgent]; ok {
		return p
	}
	return r.profiles["general"]
}
