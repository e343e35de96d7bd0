// Package builtin assembles the builtin tool set. Registration order
// is the order the tool list is presented to the model.
package builtin

import (
	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/internal/tools/files"
	"github.com/waysongjiang/pyopencode/internal/tools/interact"
	"github.com/waysongjiang/pyopencode/internal/tools/lsp"
	"github.com/waysongjiang/pyopencode/internal/tools/shell"
	"github.com/waysongjiang/pyopencode/internal/tools/todo"
	"github.com/waysongjiang/pyopencode/internal/tools/web"
)

// Register adds every builtin tool to the registry.
func Register(reg *tools.Registry) error {
	all := []tools.Tool{
		&files.ListTool{},
		&files.GlobTool{},
		&files.GrepTool{},
		&files.ReadTool{},
		&files.WriteTool{},
		&files.EditTool{},
		&files.MultiEditTool{},
		&files.PatchTool{},
		&shell.BashTool{},
		web.NewWebFetchTool(),
		&todo.TodoReadTool{},
		&todo.TodoWriteTool{},
		&files.SkillTool{},
		interact.NewQuestionTool(),
		&lsp.Tool{},
	}
	for _, t := range all {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
