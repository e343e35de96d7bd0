package agents

import (
	"reflect"
	"strings"
	"testing"

	"github.com/waysongjiang/pyopencode/internal/config"
)

func TestBuiltinProfiles(t *testing.T) {
	r := NewRegistry(nil)

	want := []string{"build", "explore", "general", "plan", "run"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	if r.DefaultAgent() != "general" {
		t.Fatalf("default agent = %q", r.DefaultAgent())
	}

	plan := r.Get("plan")
	if !strings.HasPrefix(plan.SystemPrompt, basePrompt) {
		t.Fatalf("plan prompt missing base: %q", plan.SystemPrompt)
	}
	if !strings.Contains(plan.SystemPrompt, "Mode: PLAN ONLY.") {
		t.Fatalf("plan prompt missing mode line: %q", plan.SystemPrompt)
	}
	if plan.PermissionOverrides["edit"] != "deny" || plan.PermissionOverrides["bash"] != "deny" {
		t.Fatalf("plan overrides = %v", plan.PermissionOverrides)
	}

	run := r.Get("run")
	if run.PermissionOverrides["edit"] != "allow" || run.PermissionOverrides["bash"] != "allow" {
		t.Fatalf("run overrides = %v", run.PermissionOverrides)
	}

	general := r.Get("general")
	if len(general.PermissionOverrides) != 0 {
		t.Fatalf("general overrides = %v", general.PermissionOverrides)
	}
}

func TestConfigAgentsMergeOverBuiltins(t *testing.T) {
	behavior := &config.Behavior{
		DefaultAgent: "reviewer",
		Agents: map[string]config.AgentConfig{
			"reviewer": {
				Description:  "Reviews diffs.",
				SystemPrompt: "You review code.",
				MaxSteps:     12,
				Model:        "gpt-4o-mini",
				PermissionOverrides: map[string]string{
					"edit": "deny",
					"bash": "bogus",
				},
			},
			"plan": {
				SystemPrompt: "Replaced plan.",
			},
		},
	}

	r := NewRegistry(behavior)

	reviewer := r.Get("reviewer")
	if reviewer.MaxSteps != 12 || reviewer.Model != "gpt-4o-mini" {
		t.Fatalf("reviewer = %+v", reviewer)
	}
	if reviewer.PermissionOverrides["edit"] != "deny" {
		t.Fatalf("reviewer overrides = %v", reviewer.PermissionOverrides)
	}
	if _, ok := reviewer.PermissionOverrides["bash"]; ok {
		t.Fatal("invalid decision value should be dropped")
	}

	plan := r.Get("plan")
	if plan.SystemPrompt != "Replaced plan." {
		t.Fatalf("config agent did not replace builtin: %q", plan.SystemPrompt)
	}
	if plan.Description != "Custom agent: plan" {
		t.Fatalf("plan description = %q", plan.Description)
	}
}

func TestGetFallbackChain(t *testing.T) {
	behavior := &config.Behavior{DefaultAgent: "build"}
	r := NewRegistry(behavior)

	if got := r.Get("no-such-agent").Name; got != "build" {
		t.Fatalf("fallback to default agent failed, got %q", got)
	}

	r2 := NewRegistry(&config.Behavior{DefaultAgent: "also-missing"})
	if got := r2.Get("no-such-agent").Name; got != "general" {
		t.Fatalf("fallback to general failed, got %q", got)
	}
}
