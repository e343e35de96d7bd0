// Package lsp implements the lsp tool: local Go source navigation
// (definition, references, hover, symbols, diagnostics) built on
// go/parser and go/ast instead of an external language server.
package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/waysongjiang/pyopencode/internal/tools"
	"github.com/waysongjiang/pyopencode/internal/tools/files"
)

// Tool is the lsp builtin.
type Tool struct{}

func (t *Tool) Spec() tools.Spec {
	return tools.Spec{
		Name: "lsp",
		Description: "Lightweight local code navigation for Go sources. " +
			"Actions: definition, references, hover, symbols, diagnostics.",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"definition", "references", "hover", "symbols", "diagnostics"},
					"description": "Navigation action.",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "File path (relative to cwd).",
				},
				"line": map[string]any{
					"type":        "integer",
					"description": "1-based line number.",
				},
				"column": map[string]any{
					"type":        "integer",
					"description": "0-based column offset.",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "Optional symbol substring filter for the symbols action.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Max results (default 50).",
				},
			},
			"required": []string{"action", "path"},
		}),
		Permission: "read",
	}
}

type defEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ModulePath  string `json:"module_path"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	Description string `json:"description"`
}

type refEntry struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	ModulePath   string `json:"module_path"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
	IsDefinition bool   `json:"is_definition"`
}

type symbolEntry struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	ModulePath string `json:"module_path"`
}

type diagEntry struct {
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

type resultsPayload struct {
	OK      bool `json:"ok"`
	Results any  `json:"results"`
}

type diagnosticsPayload struct {
	OK          bool        `json:"ok"`
	Diagnostics []diagEntry `json:"diagnostics"`
}

type hoverPayload struct {
	OK         bool   `json:"ok"`
	Name       string `json:"name,omitempty"`
	Type       string `json:"type,omitempty"`
	ModulePath string `json:"module_path,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Hover      string `json:"hover"`
}

func (t *Tool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = ctx
	var input struct {
		Action string `json:"action"`
		Path   string `json:"path"`
		Line   *int   `json:"line"`
		Column *int   `json:"column"`
		Query  string `json:"query"`
		Limit  *int   `json:"limit"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}

	action := strings.ToLower(strings.TrimSpace(input.Action))
	pathArg := strings.TrimSpace(input.Path)
	if action == "" || pathArg == "" {
		return tools.Errorf("Missing required args: action, path")
	}

	resolved, err := files.Resolver{Root: tctx.Cwd}.Resolve(pathArg)
	if err != nil {
		return tools.Errorf("Invalid path: %v", err)
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return tools.Errorf("File not found: %s", pathArg)
	}
	if strings.ToLower(filepath.Ext(resolved)) != ".go" {
		return tools.Errorf("LSP tool currently supports Go (.go) sources out-of-the-box. " +
			"For other languages, wire an external language server over MCP.")
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Errorf("File not found: %s", pathArg)
	}
	src := string(raw)

	line := 1
	if input.Line != nil {
		line = *input.Line
	}
	column := 0
	if input.Column != nil {
		column = *input.Column
	}
	limit := 50
	if input.Limit != nil {
		limit = *input.Limit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	query := strings.ToLower(strings.TrimSpace(input.Query))

	switch action {
	case "symbols":
		return t.symbols(resolved, src, query, limit)
	case "diagnostics":
		return t.diagnostics(resolved, src)
	case "definition":
		return t.definition(resolved, src, line, column, limit)
	case "references":
		return t.references(resolved, src, line, column, limit)
	case "hover":
		return t.hover(resolved, src, line, column)
	default:
		return tools.Errorf("Unknown action: %s", action)
	}
}

func (t *Tool) symbols(path, src, query string, limit int) tools.Result {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return tools.Errorf("LSP error: %v", err)
	}

	results := []symbolEntry{}
	add := func(name, kind string, pos token.Pos) bool {
		if name == "" || name == "_" {
			return true
		}
		if query != "" && !strings.Contains(strings.ToLower(name), query) {
			return true
		}
		p := fset.Position(pos)
		results = append(results, symbolEntry{
			Name:       name,
			Type:       kind,
			Line:       p.Line,
			Column:     p.Column - 1,
			ModulePath: path,
		})
		return len(results) < limit
	}

	more := true
	ast.Inspect(f, func(n ast.Node) bool {
		if !more {
			return false
		}
		switch d := n.(type) {
		case *ast.FuncDecl:
			kind := "func"
			if d.Recv != nil {
				kind = "method"
			}
			more = add(d.Name.Name, kind, d.Name.Pos())
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				return true
			}
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					more = add(s.Name.Name, "type", s.Name.Pos())
				case *ast.ValueSpec:
					kind := "var"
					if d.Tok == token.CONST {
						kind = "const"
					}
					for _, nm := range s.Names {
						if !more {
							break
						}
						more = add(nm.Name, kind, nm.Pos())
					}
				}
				if !more {
					break
				}
			}
		case *ast.AssignStmt:
			if d.Tok != token.DEFINE {
				return true
			}
			for _, lhs := range d.Lhs {
				if !more {
					break
				}
				if id, ok := lhs.(*ast.Ident); ok {
					more = add(id.Name, "var", id.Pos())
				}
			}
		case *ast.RangeStmt:
			if d.Tok != token.DEFINE {
				return true
			}
			if id, ok := d.Key.(*ast.Ident); ok {
				more = add(id.Name, "var", id.Pos())
			}
			if more {
				if id, ok := d.Value.(*ast.Ident); ok {
					more = add(id.Name, "var", id.Pos())
				}
			}
		case *ast.StructType:
			for _, fld := range d.Fields.List {
				for _, nm := range fld.Names {
					if !more {
						break
					}
					more = add(nm.Name, "field", nm.Pos())
				}
				if !more {
					break
				}
			}
		case *ast.InterfaceType:
			for _, m := range d.Methods.List {
				for _, nm := range m.Names {
					if !more {
						break
					}
					more = add(nm.Name, "method", nm.Pos())
				}
				if !more {
					break
				}
			}
		}
		return more
	})

	return marshalPayload(resultsPayload{OK: true, Results: results})
}

func (t *Tool) diagnostics(path, src string) tools.Result {
	fset := token.NewFileSet()
	diags := []diagEntry{}
	_, err := parser.ParseFile(fset, path, src, parser.AllErrors|parser.ParseComments)
	if err != nil {
		if list, ok := err.(scanner.ErrorList); ok {
			for _, e := range list {
				diags = append(diags, diagEntry{
					Severity: "error",
					Source:   "go.parse",
					Message:  e.Msg,
					Line:     e.Pos.Line,
					Column:   e.Pos.Column - 1,
				})
			}
		} else {
			diags = append(diags, diagEntry{
				Severity: "error",
				Source:   "go.parse",
				Message:  err.Error(),
			})
		}
	} else {
		formatted, ferr := format.Source([]byte(src))
		if ferr == nil && !bytes.Equal(formatted, []byte(src)) {
			diags = append(diags, diagEntry{
				Severity: "warning",
				Source:   "gofmt",
				Message:  "file is not gofmt-formatted",
			})
		}
	}

	return marshalPayload(diagnosticsPayload{OK: true, Diagnostics: diags})
}

func (t *Tool) definition(path, src string, line, column, limit int) tools.Result {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return tools.Errorf("LSP error: %v", err)
	}
	pos, ok := positionFor(fset, f, line, column)
	if !ok {
		return tools.Errorf("LSP error: line %d out of range", line)
	}

	results := []defEntry{}
	if id := identAt(f, pos); id != nil {
		for _, loc := range resolveDefs(fset, path, f, src, id, limit) {
			results = append(results, defEntry{
				Name:        loc.name,
				Type:        loc.kind,
				ModulePath:  loc.path,
				Line:        loc.pos.Line,
				Column:      loc.pos.Column - 1,
				Description: sourceLine(loc.src, loc.pos.Line),
			})
		}
	}
	return marshalPayload(resultsPayload{OK: true, Results: results})
}

func (t *Tool) references(path, src string, line, column, limit int) tools.Result {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return tools.Errorf("LSP error: %v", err)
	}
	pos, ok := positionFor(fset, f, line, column)
	if !ok {
		return tools.Errorf("LSP error: line %d out of range", line)
	}

	results := []refEntry{}
	id := identAt(f, pos)
	if id == nil {
		return marshalPayload(resultsPayload{OK: true, Results: results})
	}

	for _, pf := range packageFiles(fset, path, f, src) {
		ast.Inspect(pf.file, func(n ast.Node) bool {
			if len(results) >= limit {
				return false
			}
			ref, ok := n.(*ast.Ident)
			if !ok || ref.Name != id.Name {
				return true
			}
			p := fset.Position(ref.Pos())
			entry := refEntry{
				Name:       ref.Name,
				ModulePath: pf.path,
				Line:       p.Line,
				Column:     p.Column - 1,
			}
			if ref.Obj != nil {
				entry.Type = objKind(ref.Obj.Kind)
				entry.IsDefinition = ref.Obj.Pos() == ref.Pos()
			}
			results = append(results, entry)
			return true
		})
		if len(results) >= limit {
			break
		}
	}
	return marshalPayload(resultsPayload{OK: true, Results: results})
}

func (t *Tool) hover(path, src string, line, column int) tools.Result {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return tools.Errorf("LSP error: %v", err)
	}
	pos, ok := positionFor(fset, f, line, column)
	if !ok {
		return tools.Errorf("LSP error: line %d out of range", line)
	}

	id := identAt(f, pos)
	if id == nil {
		return marshalCompact(hoverPayload{OK: true})
	}
	defs := resolveDefs(fset, path, f, src, id, 1)
	if len(defs) == 0 {
		return marshalCompact(hoverPayload{OK: true})
	}

	d := defs[0]
	hover := ""
	if d.node != nil {
		hover = strings.TrimSpace(docFor(d.file, d.node))
	}
	if len(hover) > 6000 {
		hover = hover[:6000] + "\n... (truncated)"
	}
	return marshalPayload(hoverPayload{
		OK:         true,
		Name:       d.name,
		Type:       d.kind,
		ModulePath: d.path,
		Line:       d.pos.Line,
		Column:     d.pos.Column - 1,
		Hover:      hover,
	})
}

func marshalPayload(v any) tools.Result {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return tools.Errorf("LSP error: %v", err)
	}
	return tools.Text(string(data))
}

func marshalCompact(v any) tools.Result {
	data, err := json.Marshal(v)
	if err != nil {
		return tools.Errorf("LSP error: %v", err)
	}
	return tools.Text(string(data))
}
