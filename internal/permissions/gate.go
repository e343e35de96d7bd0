package permissions

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Gate resolves a permission decision into a yes/no answer, asking the
// user interactively when the decision is "ask" and auto-approve is
// off. Without a terminal on stdin, ask degrades to deny.
type Gate struct {
	cfg         *Config
	autoApprove bool
	ask         func(toolName, argsPreview string) bool
}

// NewGate wraps a permission config. When autoApprove is set, every
// "ask" decision is approved without prompting.
func NewGate(cfg *Config, autoApprove bool) *Gate {
	return &Gate{cfg: cfg, autoApprove: autoApprove, ask: interactiveAsk}
}

// Config returns the underlying permission config.
func (g *Gate) Config() *Config { return g.cfg }

// Decide reports whether the tool call may proceed. argsPreview is
// shown to the user when approval is requested.
func (g *Gate) Decide(permissionKey, toolName, argsPreview string) bool {
	switch g.cfg.Decide(permissionKey, toolName) {
	case DecisionAllow:
		return true
	case DecisionDeny:
		fmt.Fprintf(os.Stderr, "Denied tool %s (%s)\n", toolName, permissionKey)
		return false
	}
	if g.autoApprove {
		return true
	}
	return g.ask(toolName, argsPreview)
}

func interactiveAsk(toolName, argsPreview string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Denied tool %s (approval required, stdin is not a terminal)\n", toolName)
		return false
	}
	fmt.Fprintf(os.Stderr, "\nTool requires approval: %s\n%s\n", toolName, argsPreview)
	fmt.Fprintf(os.Stderr, "Approve %s? [y/N] ", toolName)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	resp := strings.ToLower(strings.TrimSpace(line))
	return resp == "y" || resp == "yes"
}
