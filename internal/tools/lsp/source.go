package lsp

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// located is one resolved declaration site, with enough context to
// render a definition entry or extract hover documentation.
type located struct {
	name string
	kind string
	path string
	pos  token.Position
	node ast.Node
	file *ast.File
	src  string
}

// parsedFile pairs a parsed file with its source text.
type parsedFile struct {
	path string
	file *ast.File
	src  string
}

// positionFor converts a 1-based line and 0-based column into a token
// position inside f. ok is false when the line is out of range.
func positionFor(fset *token.FileSet, f *ast.File, line, column int) (token.Pos, bool) {
	tf := fset.File(f.Pos())
	if tf == nil || line < 1 || line > tf.LineCount() {
		return token.NoPos, false
	}
	if column < 0 {
		column = 0
	}
	pos := tf.LineStart(line) + token.Pos(column)
	if pos > token.Pos(tf.Base()+tf.Size()) {
		return token.NoPos, false
	}
	return pos, true
}

// identAt returns the innermost identifier covering pos, or nil.
func identAt(f *ast.File, pos token.Pos) *ast.Ident {
	var found *ast.Ident
	ast.Inspect(f, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		if pos < n.Pos() || pos >= n.End() {
			return false
		}
		if id, ok := n.(*ast.Ident); ok {
			found = id
		}
		return true
	})
	return found
}

// packageFiles parses every Go file in the directory of target,
// reusing the already-parsed target file. Files that fail to parse are
// skipped so one broken sibling does not block navigation.
func packageFiles(fset *token.FileSet, target string, tf *ast.File, tsrc string) []parsedFile {
	out := []parsedFile{{path: target, file: tf, src: tsrc}}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		return out
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		p := filepath.Join(filepath.Dir(target), name)
		if p == target {
			continue
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		f, err := parser.ParseFile(fset, p, string(raw), parser.ParseComments)
		if err != nil || f == nil {
			continue
		}
		out = append(out, parsedFile{path: p, file: f, src: string(raw)})
	}
	return out
}

// resolveDefs finds declaration sites for id: the parser-resolved
// object when the declaration lives in the same file, otherwise a scan
// of top-level declarations across the package directory.
func resolveDefs(fset *token.FileSet, target string, tf *ast.File, tsrc string, id *ast.Ident, limit int) []located {
	if id.Obj != nil {
		pos := fset.Position(id.Obj.Pos())
		loc := located{
			name: id.Obj.Name,
			kind: objKind(id.Obj.Kind),
			path: target,
			pos:  pos,
			file: tf,
			src:  tsrc,
		}
		if n, ok := id.Obj.Decl.(ast.Node); ok {
			loc.node = n
		}
		return []located{loc}
	}

	var defs []located
	for _, pf := range packageFiles(fset, target, tf, tsrc) {
		for _, decl := range pf.file.Decls {
			for _, loc := range declMatches(fset, pf, decl, id.Name) {
				defs = append(defs, loc)
				if len(defs) >= limit {
					return defs
				}
			}
		}
	}
	return defs
}

// declMatches returns the declaration sites named name inside one
// top-level declaration.
func declMatches(fset *token.FileSet, pf parsedFile, decl ast.Decl, name string) []located {
	var out []located
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Name.Name == name {
			kind := "func"
			if d.Recv != nil {
				kind = "method"
			}
			out = append(out, located{
				name: name,
				kind: kind,
				path: pf.path,
				pos:  fset.Position(d.Name.Pos()),
				node: d,
				file: pf.file,
				src:  pf.src,
			})
		}
	case *ast.GenDecl:
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				if s.Name.Name == name {
					out = append(out, located{
						name: name,
						kind: "type",
						path: pf.path,
						pos:  fset.Position(s.Name.Pos()),
						node: s,
						file: pf.file,
						src:  pf.src,
					})
				}
			case *ast.ValueSpec:
				for _, n := range s.Names {
					if n.Name != name {
						continue
					}
					kind := "var"
					if d.Tok == token.CONST {
						kind = "const"
					}
					out = append(out, located{
						name: name,
						kind: kind,
						path: pf.path,
						pos:  fset.Position(n.Pos()),
						node: s,
						file: pf.file,
						src:  pf.src,
					})
				}
			}
		}
	}
	return out
}

// docFor extracts the doc comment attached to a declaration site,
// falling back to the owning declaration group's comment.
func docFor(f *ast.File, node ast.Node) string {
	switch n := node.(type) {
	case *ast.FuncDecl:
		return n.Doc.Text()
	case *ast.TypeSpec:
		if n.Doc != nil {
			return n.Doc.Text()
		}
		return groupDoc(f, n)
	case *ast.ValueSpec:
		if n.Doc != nil {
			return n.Doc.Text()
		}
		return groupDoc(f, n)
	case *ast.Field:
		return n.Doc.Text()
	}
	return ""
}

// groupDoc finds the GenDecl holding spec and returns its doc text.
func groupDoc(f *ast.File, spec ast.Spec) string {
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, s := range gd.Specs {
			if s == spec {
				return gd.Doc.Text()
			}
		}
	}
	return ""
}

// objKind maps parser object kinds to the result vocabulary.
func objKind(k ast.ObjKind) string {
	switch k {
	case ast.Pkg:
		return "package"
	case ast.Con:
		return "const"
	case ast.Typ:
		return "type"
	case ast.Var:
		return "var"
	case ast.Fun:
		return "func"
	case ast.Lbl:
		return "label"
	}
	return ""
}

// sourceLine returns the trimmed text of a 1-based line, capped for
// description fields.
func sourceLine(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	text := strings.TrimSpace(lines[line-1])
	if len(text) > 400 {
		text = text[:400]
	}
	return text
}
