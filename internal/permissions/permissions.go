// Package permissions decides whether a tool call may run. Decisions
// come from an ordered rule list over a set of class defaults; the gate
// layers interactive approval on top.
package permissions

import (
	"path"
	"strings"
)

// Decision is the outcome of a permission lookup.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionAsk   Decision = "ask"
	DecisionDeny  Decision = "deny"
)

// ValidDecision reports whether s is one of allow/ask/deny.
func ValidDecision(s string) bool {
	switch Decision(s) {
	case DecisionAllow, DecisionAsk, DecisionDeny:
		return true
	}
	return false
}

// Rule maps a match pattern to a decision. A pattern of the form
// "tool:<glob>" matches tool names only; any other glob matches the
// permission class or the tool name.
type Rule struct {
	Match    string   `json:"match"`
	Decision Decision `json:"decision"`
}

// Config holds class defaults plus an ordered rule list. Later rules
// win over earlier ones; any matching rule wins over the defaults.
type Config struct {
	defaults map[string]Decision
	rules    []Rule
}

// NewConfig returns a config with the builtin defaults: read tools run
// freely, edit/bash/mcp ask first.
func NewConfig() *Config {
	return &Config{
		defaults: map[string]Decision{
			"read": DecisionAllow,
			"edit": DecisionAsk,
			"bash": DecisionAsk,
			"mcp":  DecisionAsk,
		},
	}
}

// Set overrides the default decision for a permission class or tool
// name.
func (c *Config) Set(key string, d Decision) {
	c.defaults[key] = d
}

// ApplyBehavior appends behavior-config rules. Order is preserved so a
// later rule in the config file overrides an earlier one.
func (c *Config) ApplyBehavior(rules []Rule) {
	c.rules = append(c.rules, rules...)
}

// ApplyAgentOverrides applies an agent profile's class overrides to the
// defaults. Invalid decision strings are ignored.
func (c *Config) ApplyAgentOverrides(overrides map[string]string) {
	for k, v := range overrides {
		if ValidDecision(v) {
			c.defaults[k] = Decision(v)
		}
	}
}

// Decide resolves the decision for a tool call. Every rule is evaluated
// in order and the last match wins; with no match the class default
// applies, then a tool-name default, then ask.
func (c *Config) Decide(permissionKey, toolName string) Decision {
	var matched Decision
	found := false
	for _, r := range c.rules {
		if pat, ok := strings.CutPrefix(r.Match, "tool:"); ok {
			if globMatch(pat, toolName) {
				matched, found = r.Decision, true
			}
			continue
		}
		if globMatch(r.Match, permissionKey) || globMatch(r.Match, toolName) {
			matched, found = r.Decision, true
		}
	}
	if found {
		return matched
	}
	if d, ok := c.defaults[permissionKey]; ok {
		return d
	}
	if d, ok := c.defaults[toolName]; ok {
		return d
	}
	return DecisionAsk
}

// globMatch is fnmatch-style matching. Malformed patterns match
// nothing.
func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}
