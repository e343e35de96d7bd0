// Package compaction keeps the outbound prompt within budget. It injects
// the skill, rules and agent system messages, maintains a rolling window
// over the conversation, folds older history into summaries, and caps
// individual message sizes.
package compaction

// Policy holds the size knobs for prompt compaction.
type Policy struct {
	// MaxMessages is the rolling window size after compaction.
	MaxMessages int

	// SummarizeWhenOver triggers summarization of older content once the
	// conversation reaches this many messages.
	SummarizeWhenOver int

	// MaxToolResultChars caps a single tool result kept in the prompt.
	MaxToolResultChars int

	// MaxMessageChars caps any other message content.
	MaxMessageChars int
}

// DefaultPolicy returns the stock compaction knobs.
func DefaultPolicy() Policy {
	return Policy{
		MaxMessages:        45,
		SummarizeWhenOver:  60,
		MaxToolResultChars: 12000,
		MaxMessageChars:    20000,
	}
}

// minSummarizable is the smallest head worth folding into a summary.
const minSummarizable = 8

// TruncateMiddle caps text at maxChars by keeping the head and the tail
// around a truncation marker. maxChars <= 0 disables the cap.
func TruncateMiddle(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	half := maxChars / 2
	if half < 1 {
		half = 1
	}
	return text[:half] + "\n\n... (truncated) ...\n\n" + text[len(text)-half:]
}
