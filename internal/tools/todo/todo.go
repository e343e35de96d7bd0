// Package todo implements the per-session todo list tools. Items live
// in a JSON file under the user data directory, keyed by session id.
package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/internal/workspace"
)

// Item is one todo entry.
type Item struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Status    string  `json:"status"`
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
}

func validStatus(s string) bool {
	return s == "todo" || s == "doing" || s == "done"
}

func todoPath(sessionID string) (string, error) {
	dir, err := workspace.TodosDir()
	if err != nil {
		return "", err
	}
	sid := sessionID
	if sid == "" {
		sid = "default"
	}
	return filepath.Join(dir, sid+".json"), nil
}

// loadItems returns the stored list. Missing or unreadable files count
// as an empty list.
func loadItems(sessionID string) []Item {
	p, err := todoPath(sessionID)
	if err != nil {
		return nil
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func saveItems(sessionID string, items []Item) error {
	p, err := todoPath(sessionID)
	if err != nil {
		return err
	}
	if items == nil {
		items = []Item{}
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, raw, 0o644)
}

func formatItems(items []Item) string {
	if len(items) == 0 {
		return "(empty todo list)"
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", it.Status, it.ID, it.Text))
	}
	return strings.Join(lines, "\n")
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// TodoReadTool lists the session's todo items.
type TodoReadTool struct{}

func (t *TodoReadTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "todoread",
		Description: "Read the current todo list for this session.",
		Parameters: tools.MustSchema(map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}),
		Permission: "read",
	}
}

func (t *TodoReadTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_, _ = ctx, args
	return tools.Text(formatItems(loadItems(tctx.SessionID)))
}

// TodoWriteTool mutates the session's todo list.
type TodoWriteTool struct{}

func (t *TodoWriteTool) Spec() tools.Spec {
	return tools.Spec{
		Name: "todowrite",
		Description: "Update the todo list for this session. Supports add/update/remove/clear. " +
			"Use todoread to view current items.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"add", "update", "remove", "clear"},
					"description": "Operation to perform.",
				},
				"text": map[string]any{
					"type":        "string",
					"description": "Todo text (for add/update).",
				},
				"id": map[string]any{
					"type":        "string",
					"description": "Todo id (for update/remove).",
				},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"todo", "doing", "done"},
					"description": "New status (for update).",
				},
			},
			"required": []string{"action"},
		}),
		Permission: "edit",
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Action string  `json:"action"`
		Text   *string `json:"text"`
		ID     string  `json:"id"`
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	items := loadItems(tctx.SessionID)
	now := nowSeconds()

	switch action {
	case "clear":
		items = nil
		if err := saveItems(tctx.SessionID, items); err != nil {
			return tools.Errorf("save todos: %v", err)
		}
		return tools.Text("Cleared todo list.\n" + formatItems(items))

	case "add":
		text := ""
		if input.Text != nil {
			text = strings.TrimSpace(*input.Text)
		}
		if text == "" {
			return tools.Errorf("todowrite add requires: text")
		}
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		items = append(items, Item{ID: id, Text: text, Status: "todo", CreatedAt: now, UpdatedAt: now})
		if err := saveItems(tctx.SessionID, items); err != nil {
			return tools.Errorf("save todos: %v", err)
		}
		return tools.Text("Added todo.\n" + formatItems(items))

	case "update", "remove":
		tid := strings.TrimSpace(input.ID)
		if tid == "" {
			return tools.Errorf("todowrite %s requires: id", action)
		}
		idx := -1
		for i, it := range items {
			if it.ID == tid {
				idx = i
				break
			}
		}
		if idx < 0 {
			return tools.Errorf("Todo id not found: %s", tid)
		}

		if action == "remove" {
			removed := items[idx]
			items = append(items[:idx], items[idx+1:]...)
			if err := saveItems(tctx.SessionID, items); err != nil {
				return tools.Errorf("save todos: %v", err)
			}
			return tools.Text(fmt.Sprintf("Removed todo %s.\n", removed.ID) + formatItems(items))
		}

		if input.Text != nil {
			items[idx].Text = *input.Text
		}
		if input.Status != nil {
			if !validStatus(*input.Status) {
				return tools.Errorf("Invalid status: %s", *input.Status)
			}
			items[idx].Status = *input.Status
		}
		items[idx].UpdatedAt = now
		if err := saveItems(tctx.SessionID, items); err != nil {
			return tools.Errorf("save todos: %v", err)
		}
		return tools.Text(fmt.Sprintf("Updated todo %s.\n", items[idx].ID) + formatItems(items))
	}

	return tools.Errorf("Invalid action: %s", action)
}
