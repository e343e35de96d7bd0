package compaction

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

// Result is the outcome of a prompt build.
type Result struct {
	// Messages is the wire form ready to send to the provider.
	Messages []llm.WireMessage

	// NewSummary is non-nil when compaction folded older history into a
	// fresh summary; the caller should persist it to the session.
	NewSummary *models.Message
}

// Builder assembles the outbound prompt from session history. The agent
// profile, rules and SKILL.md injections sit at the top, older content is
// summarized once the conversation gets long, and everything is clamped
// to the policy window.
type Builder struct {
	Policy           Policy
	Cwd              string
	RulesText        string
	AgentPrompt      string
	IncludeReasoning bool
	ForceReasoning   bool

	// DisableSkill skips the SKILL.md injection.
	DisableSkill bool
}

// Build produces the wire messages for one LLM call. The provider is
// used only when older history must be summarized.
func (b *Builder) Build(ctx context.Context, provider llm.Provider, history []models.Message) Result {
	msgs := make([]models.Message, len(history))
	copy(msgs, history)
	var newSummary *models.Message

	// Injection order matters: each prepend lands above the previous one,
	// so the final top of the prompt reads agent, rules, skill.
	if !b.DisableSkill {
		if skill := loadSkill(b.Cwd); skill != "" && !hasNamedSystem(msgs, models.NameSkill) {
			msgs = append([]models.Message{models.SystemNamed(models.NameSkill, "Project SKILL.md:\n\n"+skill)}, msgs...)
		}
	}
	if text := strings.TrimSpace(b.RulesText); text != "" {
		msgs = append([]models.Message{models.SystemNamed(models.NameRules, "Rules:\n\n"+text)}, msgs...)
	}
	if text := strings.TrimSpace(b.AgentPrompt); text != "" {
		msgs = append([]models.Message{models.SystemNamed(models.NameAgent, text)}, msgs...)
	}

	if len(msgs) >= b.Policy.SummarizeWhenOver && b.Policy.MaxMessages > 0 && len(msgs) > b.Policy.MaxMessages {
		tail := msgs[len(msgs)-b.Policy.MaxMessages:]
		head := msgs[:len(msgs)-b.Policy.MaxMessages]

		// Old summaries in the head would be summarized twice.
		headToSum := make([]models.Message, 0, len(head))
		for _, m := range head {
			if m.Role == models.RoleSystem && m.Name == models.NameSummary {
				continue
			}
			headToSum = append(headToSum, m)
		}

		if len(headToSum) >= minSummarizable {
			text := Summarize(ctx, provider, headToSum, b.IncludeReasoning, b.ForceReasoning)
			summary := models.SystemNamed(models.NameSummary, text)
			newSummary = &summary
			msgs = append([]models.Message{summary}, tail...)
		}
	}

	// Hard cap: system messages always survive, the rest keeps its tail.
	if b.Policy.MaxMessages > 0 && len(msgs) > b.Policy.MaxMessages {
		var system, other []models.Message
		for _, m := range msgs {
			if m.Role == models.RoleSystem {
				system = append(system, m)
			} else {
				other = append(other, m)
			}
		}
		keep := b.Policy.MaxMessages - len(system)
		if keep < 0 {
			keep = 0
		}
		if len(other) > keep {
			other = other[len(other)-keep:]
		}
		msgs = append(system, other...)
	}

	for i, m := range msgs {
		if m.Content == nil {
			continue
		}
		limit := b.Policy.MaxMessageChars
		if m.Role == models.RoleTool && b.Policy.MaxToolResultChars > 0 && b.Policy.MaxToolResultChars < limit {
			limit = b.Policy.MaxToolResultChars
		}
		if limit > 0 && len(*m.Content) > limit {
			truncated := TruncateMiddle(*m.Content, limit)
			msgs[i].Content = &truncated
		}
	}

	return Result{
		Messages:   Serialize(msgs, b.IncludeReasoning, b.ForceReasoning),
		NewSummary: newSummary,
	}
}

// Serialize converts session messages to provider wire form. Tool
// messages never carry a name. Assistant messages carry their tool calls;
// reasoning text is echoed on tool-call messages when includeReasoning is
// set, and on every assistant message (empty string fallback) when
// forceReasoning is set.
func Serialize(msgs []models.Message, includeReasoning, forceReasoning bool) []llm.WireMessage {
	out := make([]llm.WireMessage, 0, len(msgs))
	for _, m := range msgs {
		w := llm.WireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Name != "" && m.Role != models.RoleTool {
			w.Name = m.Name
		}
		if m.Role == models.RoleAssistant {
			w.ToolCalls = m.ToolCalls
			if forceReasoning || (includeReasoning && len(m.ToolCalls) > 0) {
				reasoning := m.ReasoningContent
				w.ReasoningContent = &reasoning
			}
		}
		out = append(out, w)
	}
	return out
}

func loadSkill(cwd string) string {
	path := filepath.Join(cwd, "SKILL.md")
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

func hasNamedSystem(msgs []models.Message, name string) bool {
	for _, m := range msgs {
		if m.Role == models.RoleSystem && m.Name == name {
			return true
		}
	}
	return false
}
