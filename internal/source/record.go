package source

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"
)

// markerPrefix is the decoration marker stripped from canonical fragment
// text. A fragment may carry lines like `//nativize:compile opt=aggressive`
// next to its declaration; those lines are directives for the surrounding
// tooling, not part of the function's identity.
const markerPrefix = "//nativize:"

// IntrospectionError reports that a function's canonical source text could
// not be produced: the fragment is missing, does not parse, or names a
// construct the pipeline cannot compile (a method body).
type IntrospectionError struct {
	Name   string
	Reason string
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspect %s: %s", e.Name, e.Reason)
}

// Param is one declared parameter of a target function.
type Param struct {
	Name string
	Type string
}

// FunctionRecord is the canonical view of a compile target: its source text
// with decoration markers stripped, its qualified name, and its declared
// signature. The signature is carried for fidelity checks against the loaded
// artifact, not for optimization.
type FunctionRecord struct {
	Name      string
	Namespace string
	Text      string
	Params    []Param
	Results   []string
}

// QualifiedName returns namespace.name.
func (rec *FunctionRecord) QualifiedName() string {
	return rec.Namespace + "." + rec.Name
}

// Signature renders the declared signature, e.g. "func(n int) int".
func (rec *FunctionRecord) Signature() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range rec.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Name != "" {
			b.WriteString(p.Name)
			b.WriteString(" ")
		}
		b.WriteString(p.Type)
	}
	b.WriteString(")")
	switch len(rec.Results) {
	case 0:
	case 1:
		b.WriteString(" ")
		b.WriteString(rec.Results[0])
	default:
		b.WriteString(" (")
		b.WriteString(strings.Join(rec.Results, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Introspect extracts the FunctionRecord for a registered function. It is a
// pure read: the registry is not modified.
func Introspect(reg *Registry, name string) (*FunctionRecord, error) {
	frag, ok := reg.Func(name)
	if !ok {
		return nil, &IntrospectionError{Name: name, Reason: "no registered source fragment"}
	}

	text := StripMarkers(frag.Text)
	decl, fset, err := parseFuncDecl(name, text)
	if err != nil {
		return nil, err
	}
	if decl.Recv != nil {
		return nil, &IntrospectionError{Name: name, Reason: "method bodies are not supported, only free functions"}
	}
	if decl.Name.Name != name {
		return nil, &IntrospectionError{
			Name:   name,
			Reason: fmt.Sprintf("fragment declares %q, registered as %q", decl.Name.Name, name),
		}
	}

	rec := &FunctionRecord{
		Name:      name,
		Namespace: reg.Namespace(),
		Text:      text,
	}

	if decl.Type.Params != nil {
		for _, field := range decl.Type.Params.List {
			typ := exprString(fset, field.Type)
			if len(field.Names) == 0 {
				rec.Params = append(rec.Params, Param{Type: typ})
				continue
			}
			for _, id := range field.Names {
				rec.Params = append(rec.Params, Param{Name: id.Name, Type: typ})
			}
		}
	}
	if decl.Type.Results != nil {
		for _, field := range decl.Type.Results.List {
			typ := exprString(fset, field.Type)
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				rec.Results = append(rec.Results, typ)
			}
		}
	}
	return rec, nil
}

// StripMarkers removes decoration marker lines from fragment text while
// leaving all other comments intact.
func StripMarkers(text string) string {
	if !strings.Contains(text, markerPrefix) {
		return strings.TrimSpace(text)
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), markerPrefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// parseFuncDecl parses fragment text expected to contain exactly one
// function declaration.
func parseFuncDecl(name, text string) (*ast.FuncDecl, *token.FileSet, error) {
	src := "package p\n\n" + text
	fset := newFileSet()
	file, err := parser.ParseFile(fset, name+".go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, &IntrospectionError{Name: name, Reason: fmt.Sprintf("fragment does not parse: %v", err)}
	}
	var found *ast.FuncDecl
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if found != nil {
			return nil, nil, &IntrospectionError{Name: name, Reason: "fragment contains more than one function declaration"}
		}
		found = fn
	}
	if found == nil {
		return nil, nil, &IntrospectionError{Name: name, Reason: "fragment contains no function declaration"}
	}
	return found, fset, nil
}

func exprString(fset *token.FileSet, expr ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, expr); err != nil {
		return ""
	}
	return buf.String()
}

func newFileSet() *token.FileSet {
	return token.NewFileSet()
}
