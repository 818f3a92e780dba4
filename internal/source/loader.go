package source

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// LoadDir runs the preprocessing pass over a directory of Go source files,
// registering every top-level free function, type declaration, constant, and
// import spec into reg. This is the build-time replacement for runtime
// source retrieval: the directory is the addressable source artifact.
//
// Files are visited in sorted name order so registration order (and the
// registry generation) is deterministic. `_test.go` files and methods are
// skipped; methods stay behind the opaque call boundary.
func LoadDir(reg *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &IntrospectionError{Name: dir, Reason: fmt.Sprintf("reading source directory: %v", err)}
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return &IntrospectionError{Name: dir, Reason: "no Go source files found"}
	}

	for _, name := range files {
		if err := loadFile(reg, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func loadFile(reg *Registry, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &IntrospectionError{Name: path, Reason: fmt.Sprintf("reading file: %v", err)}
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return &IntrospectionError{Name: path, Reason: fmt.Sprintf("parsing file: %v", err)}
	}

	for _, group := range astutil.Imports(fset, file) {
		for _, spec := range group {
			reg.RegisterImport(importSpecText(spec))
		}
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil {
				continue
			}
			text := sliceDecl(fset, src, d.Pos(), d.End())
			if err := reg.RegisterFunc(d.Name.Name, text); err != nil {
				return err
			}
		case *ast.GenDecl:
			if err := loadGenDecl(reg, fset, src, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadGenDecl registers const and type declarations. A grouped block is
// registered under each name it declares, with the whole block as the text;
// the synthesizer deduplicates identical bodies.
func loadGenDecl(reg *Registry, fset *token.FileSet, src []byte, d *ast.GenDecl) error {
	switch d.Tok {
	case token.CONST:
		text := sliceDecl(fset, src, d.Pos(), d.End())
		for _, spec := range d.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, id := range vs.Names {
				if id.Name == "_" {
					continue
				}
				if err := reg.RegisterConst(id.Name, text); err != nil {
					return err
				}
			}
		}
	case token.TYPE:
		for _, spec := range d.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			text := "type " + sliceDecl(fset, src, ts.Pos(), ts.End())
			if err := reg.RegisterType(ts.Name.Name, text); err != nil {
				return err
			}
		}
	}
	return nil
}

// sliceDecl cuts the literal source text of a declaration out of the file
// bytes. Doc comments are excluded so fragment identity tracks code, not
// commentary above it.
func sliceDecl(fset *token.FileSet, src []byte, pos, end token.Pos) string {
	start := fset.Position(pos).Offset
	stop := fset.Position(end).Offset
	if start < 0 || stop > len(src) || start >= stop {
		return ""
	}
	return strings.TrimSpace(string(src[start:stop]))
}

func importSpecText(spec *ast.ImportSpec) string {
	if spec.Name != nil {
		return spec.Name.Name + " " + spec.Path.Value
	}
	return spec.Path.Value
}
