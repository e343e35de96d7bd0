package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/llm"
	"github.com/waysongjiang/pyopencode/pkg/models"
)

const summaryPrompt = "You are summarizing a coding agent conversation for future continuation.\n" +
	"Write a concise but information-dense summary with these sections:\n" +
	"- Goal\n- Key decisions\n- Current state (files touched, commands run, errors)\n- TODO next\n" +
	"Keep it under 2500 characters."

// Summarize folds msgs into a short continuation summary via a tool-free
// LLM call. Failures are folded into the returned text so the prompt
// build never aborts.
func Summarize(ctx context.Context, provider llm.Provider, msgs []models.Message, includeReasoning, forceReasoning bool) string {
	prompt := summaryPrompt
	wire := make([]llm.WireMessage, 0, len(msgs)+1)
	wire = append(wire, llm.WireMessage{Role: string(models.RoleSystem), Content: &prompt})
	wire = append(wire, Serialize(msgs, includeReasoning, forceReasoning)...)

	turn, err := provider.Complete(ctx, llm.Request{Messages: wire})
	if err != nil {
		return fmt.Sprintf("(summary failed: %v)", err)
	}
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return "(summary empty)"
	}
	return text
}
