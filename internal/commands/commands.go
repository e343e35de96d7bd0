// Package commands loads reusable prompt templates. A command is a
// markdown or text file with optional YAML front matter, or an inline
// entry in the behavior config; its body is rendered with {{key}}
// substitutions and run as the user prompt.
package commands

import (
	"fmt"
	"sort"
	"strings"
)

// Spec is one command template. The front-matter keys description,
// agent, model and max_steps override run settings; Prompt is the body.
type Spec struct {
	Name        string `json:"-" yaml:"-"`
	Description string `json:"description,omitempty" yaml:"description"`
	Agent       string `json:"agent,omitempty" yaml:"agent"`
	Prompt      string `json:"prompt,omitempty" yaml:"-"`
	Model       string `json:"model,omitempty" yaml:"model"`
	MaxSteps    int    `json:"max_steps,omitempty" yaml:"max_steps"`

	// SourcePath is the file the command was loaded from, empty for
	// inline commands.
	SourcePath string `json:"-" yaml:"-"`
}

// Render substitutes {{key}} placeholders in the prompt body. Unresolved
// placeholders are kept verbatim.
func (s Spec) Render(args map[string]string) string {
	text := s.Prompt
	for k, v := range args {
		text = strings.ReplaceAll(text, "{{"+k+"}}", v)
	}
	return text
}

// Load returns the named command from the discovered set.
func Load(cwd, name string, inline map[string]Spec) (Spec, error) {
	cmds := Discover(cwd, inline)
	spec, ok := cmds[name]
	if !ok {
		names := make([]string, 0, len(cmds))
		for n := range cmds {
			names = append(names, n)
		}
		sort.Strings(names)
		return Spec{}, fmt.Errorf("Unknown command: %s. Available: %s", name, strings.Join(names, ", "))
	}
	return spec, nil
}
