// Package interact implements the question tool, which pauses tool
// execution to ask the user for a choice or missing parameter.
package interact

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

// QuestionTool prompts the user on the terminal and returns the answer
// as JSON so the model can parse it.
type QuestionTool struct {
	in         io.Reader
	out        io.Writer
	isTerminal func() bool
}

// NewQuestionTool wires the tool to stdin and stderr. Prompts go to
// stderr so piped stdout stays clean.
func NewQuestionTool() *QuestionTool {
	return &QuestionTool{
		in:  os.Stdin,
		out: os.Stderr,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func (t *QuestionTool) Spec() tools.Spec {
	return tools.Spec{
		Name: "question",
		Description: "Ask the user a clarifying question during REPL/tool execution. " +
			"Useful when the assistant needs a choice or a missing parameter.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "Question to ask the user.",
				},
				"choices": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Optional list of choices. User will pick by number or text.",
				},
				"default": map[string]any{
					"type":        "string",
					"description": "Default answer (optional).",
				},
			},
			"required": []string{"question"},
		}),
		Permission: "read",
	}
}

func (t *QuestionTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_, _ = ctx, tctx
	var input struct {
		Question string   `json:"question"`
		Choices  []string `json:"choices"`
		Default  *string  `json:"default"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	q := strings.TrimSpace(input.Question)
	if q == "" {
		return tools.Errorf("Missing required field: question")
	}

	if !t.isTerminal() {
		if input.Default == nil {
			return tools.Errorf("question requires an interactive terminal")
		}
		if len(input.Choices) > 0 {
			return choiceAnswer(pickChoice(*input.Default, input.Choices), *input.Default, input.Choices)
		}
		return freeAnswer(*input.Default)
	}

	if len(input.Choices) > 0 {
		fmt.Fprintf(t.out, "\nQuestion: %s\n", q)
		for i, c := range input.Choices {
			fmt.Fprintf(t.out, "  %d. %s\n", i+1, c)
		}
		ans := t.prompt("Your answer (number or text)", input.Default)
		return choiceAnswer(pickChoice(ans, input.Choices), ans, input.Choices)
	}

	ans := t.prompt("\n"+q, input.Default)
	return freeAnswer(ans)
}

func (t *QuestionTool) prompt(label string, def *string) string {
	if def != nil {
		fmt.Fprintf(t.out, "%s [%s]: ", label, *def)
	} else {
		fmt.Fprintf(t.out, "%s: ", label)
	}
	reader := bufio.NewReader(t.in)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" && def != nil {
		return *def
	}
	return line
}

// pickChoice resolves a numeric reply to its choice; anything else is
// taken verbatim.
func pickChoice(ans string, choices []string) string {
	if idx, err := strconv.Atoi(ans); err == nil && idx >= 1 && idx <= len(choices) {
		return choices[idx-1]
	}
	return ans
}

func choiceAnswer(picked, raw string, choices []string) tools.Result {
	payload, err := json.Marshal(struct {
		Answer  string   `json:"answer"`
		Raw     string   `json:"raw"`
		Choices []string `json:"choices"`
	}{picked, raw, choices})
	if err != nil {
		return tools.Errorf("encode answer: %v", err)
	}
	return tools.Text(string(payload))
}

func freeAnswer(ans string) tools.Result {
	payload, err := json.Marshal(struct {
		Answer string `json:"answer"`
	}{ans})
	if err != nil {
		return tools.Errorf("encode answer: %v", err)
	}
	return tools.Text(string(payload))
}
