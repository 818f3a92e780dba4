package resolve

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
)

// identScanner walks a declaration's parse tree collecting identifiers that
// are free in the fragment: used but not bound by any enclosing lexical
// scope. Selector bases (the `math` in math.Sqrt) are collected too, so the
// resolver can decide which import specs the closure actually uses.
//
// This replaces the original free-text scan: a local variable that happens
// to share a name with a registered function is bound by its scope and never
// resolved as a dependency.
type identScanner struct {
	scopes []map[string]bool
	refs   map[string]bool
}

// scanFragmentRefs parses fragment text (one or more top-level declarations)
// and returns the sorted set of free identifiers it references.
func scanFragmentRefs(name, text string) ([]string, error) {
	src := "package p\n\n" + text
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name+".go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment %s: %w", name, err)
	}

	s := &identScanner{refs: make(map[string]bool)}
	s.push()
	// Names declared by the fragment itself are bound, not free.
	for _, decl := range file.Decls {
		declareTopLevel(s, decl)
	}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			s.scanFuncDecl(d)
		case *ast.GenDecl:
			s.scanGenDecl(d)
		}
	}
	s.pop()

	out := make([]string, 0, len(s.refs))
	for ref := range s.refs {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out, nil
}

func declareTopLevel(s *identScanner, decl ast.Decl) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv == nil {
			s.declare(d.Name.Name)
		}
	case *ast.GenDecl:
		for _, spec := range d.Specs {
			switch sp := spec.(type) {
			case *ast.ValueSpec:
				for _, id := range sp.Names {
					s.declare(id.Name)
				}
			case *ast.TypeSpec:
				s.declare(sp.Name.Name)
			}
		}
	}
}

func (s *identScanner) push() {
	s.scopes = append(s.scopes, make(map[string]bool))
}

func (s *identScanner) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *identScanner) declare(name string) {
	if name == "" || name == "_" {
		return
	}
	s.scopes[len(s.scopes)-1][name] = true
}

func (s *identScanner) bound(name string) bool {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i][name] {
			return true
		}
	}
	return false
}

func (s *identScanner) use(id *ast.Ident) {
	if id == nil || id.Name == "_" {
		return
	}
	if s.bound(id.Name) {
		return
	}
	s.refs[id.Name] = true
}

// scanFuncDecl scans a function declaration: parameters and named results
// bind a new scope around the body.
func (s *identScanner) scanFuncDecl(d *ast.FuncDecl) {
	s.push()
	defer s.pop()
	s.declareFieldList(d.Type.Params)
	s.declareFieldList(d.Type.Results)
	s.scanFieldListTypes(d.Type.Params)
	s.scanFieldListTypes(d.Type.Results)
	if d.Body != nil {
		s.scanBlock(d.Body)
	}
}

func (s *identScanner) scanGenDecl(d *ast.GenDecl) {
	for _, spec := range d.Specs {
		switch sp := spec.(type) {
		case *ast.ValueSpec:
			if sp.Type != nil {
				s.scanExpr(sp.Type)
			}
			for _, v := range sp.Values {
				s.scanExpr(v)
			}
		case *ast.TypeSpec:
			s.scanExpr(sp.Type)
		}
	}
}

func (s *identScanner) declareFieldList(fl *ast.FieldList) {
	if fl == nil {
		return
	}
	for _, f := range fl.List {
		for _, id := range f.Names {
			s.declare(id.Name)
		}
	}
}

func (s *identScanner) scanFieldListTypes(fl *ast.FieldList) {
	if fl == nil {
		return
	}
	for _, f := range fl.List {
		s.scanExpr(f.Type)
	}
}

func (s *identScanner) scanBlock(b *ast.BlockStmt) {
	s.push()
	defer s.pop()
	for _, stmt := range b.List {
		s.scanStmt(stmt)
	}
}

func (s *identScanner) scanStmt(stmt ast.Stmt) {
	switch st := stmt.(type) {
	case nil:
	case *ast.ExprStmt:
		s.scanExpr(st.X)
	case *ast.AssignStmt:
		for _, rhs := range st.Rhs {
			s.scanExpr(rhs)
		}
		if st.Tok == token.DEFINE {
			for _, lhs := range st.Lhs {
				if id, ok := lhs.(*ast.Ident); ok {
					s.declare(id.Name)
					continue
				}
				s.scanExpr(lhs)
			}
		} else {
			for _, lhs := range st.Lhs {
				s.scanExpr(lhs)
			}
		}
	case *ast.DeclStmt:
		if gd, ok := st.Decl.(*ast.GenDecl); ok {
			// Values are scanned before the names bind, matching Go's
			// declare-after-init semantics for a single spec.
			s.scanGenDecl(gd)
			for _, spec := range gd.Specs {
				switch sp := spec.(type) {
				case *ast.ValueSpec:
					for _, id := range sp.Names {
						s.declare(id.Name)
					}
				case *ast.TypeSpec:
					s.declare(sp.Name.Name)
				}
			}
		}
	case *ast.ReturnStmt:
		for _, r := range st.Results {
			s.scanExpr(r)
		}
	case *ast.IfStmt:
		s.push()
		s.scanStmt(st.Init)
		s.scanExpr(st.Cond)
		s.scanBlock(st.Body)
		s.scanStmt(st.Else)
		s.pop()
	case *ast.ForStmt:
		s.push()
		s.scanStmt(st.Init)
		s.scanExpr(st.Cond)
		s.scanStmt(st.Post)
		s.scanBlock(st.Body)
		s.pop()
	case *ast.RangeStmt:
		s.push()
		s.scanExpr(st.X)
		if st.Tok == token.DEFINE {
			if id, ok := st.Key.(*ast.Ident); ok {
				s.declare(id.Name)
			}
			if id, ok := st.Value.(*ast.Ident); ok {
				s.declare(id.Name)
			}
		} else {
			s.scanExpr(st.Key)
			s.scanExpr(st.Value)
		}
		s.scanBlock(st.Body)
		s.pop()
	case *ast.SwitchStmt:
		s.push()
		s.scanStmt(st.Init)
		s.scanExpr(st.Tag)
		for _, c := range st.Body.List {
			s.scanStmt(c)
		}
		s.pop()
	case *ast.TypeSwitchStmt:
		s.push()
		s.scanStmt(st.Init)
		s.scanStmt(st.Assign)
		for _, c := range st.Body.List {
			s.scanStmt(c)
		}
		s.pop()
	case *ast.SelectStmt:
		for _, c := range st.Body.List {
			s.scanStmt(c)
		}
	case *ast.CaseClause:
		s.push()
		for _, e := range st.List {
			s.scanExpr(e)
		}
		for _, body := range st.Body {
			s.scanStmt(body)
		}
		s.pop()
	case *ast.CommClause:
		s.push()
		s.scanStmt(st.Comm)
		for _, body := range st.Body {
			s.scanStmt(body)
		}
		s.pop()
	case *ast.BlockStmt:
		s.scanBlock(st)
	case *ast.IncDecStmt:
		s.scanExpr(st.X)
	case *ast.SendStmt:
		s.scanExpr(st.Chan)
		s.scanExpr(st.Value)
	case *ast.GoStmt:
		s.scanExpr(st.Call)
	case *ast.DeferStmt:
		s.scanExpr(st.Call)
	case *ast.LabeledStmt:
		s.scanStmt(st.Stmt)
	case *ast.BranchStmt:
		// Labels are not value identifiers.
	case *ast.EmptyStmt:
	}
}

func (s *identScanner) scanExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case nil:
	case *ast.Ident:
		s.use(e)
	case *ast.SelectorExpr:
		// Only the base can be a free identifier; the selector itself is
		// a field, method, or package member name.
		s.scanExpr(e.X)
	case *ast.CallExpr:
		s.scanExpr(e.Fun)
		for _, arg := range e.Args {
			s.scanExpr(arg)
		}
	case *ast.BinaryExpr:
		s.scanExpr(e.X)
		s.scanExpr(e.Y)
	case *ast.UnaryExpr:
		s.scanExpr(e.X)
	case *ast.ParenExpr:
		s.scanExpr(e.X)
	case *ast.StarExpr:
		s.scanExpr(e.X)
	case *ast.IndexExpr:
		s.scanExpr(e.X)
		s.scanExpr(e.Index)
	case *ast.IndexListExpr:
		s.scanExpr(e.X)
		for _, idx := range e.Indices {
			s.scanExpr(idx)
		}
	case *ast.SliceExpr:
		s.scanExpr(e.X)
		s.scanExpr(e.Low)
		s.scanExpr(e.High)
		s.scanExpr(e.Max)
	case *ast.TypeAssertExpr:
		s.scanExpr(e.X)
		s.scanExpr(e.Type)
	case *ast.CompositeLit:
		s.scanExpr(e.Type)
		for _, elt := range e.Elts {
			s.scanExpr(elt)
		}
	case *ast.KeyValueExpr:
		// Ident keys are struct field names or map keys; without type
		// information, field names dominate and keys are skipped.
		if _, ok := e.Key.(*ast.Ident); !ok {
			s.scanExpr(e.Key)
		}
		s.scanExpr(e.Value)
	case *ast.FuncLit:
		s.push()
		s.declareFieldList(e.Type.Params)
		s.declareFieldList(e.Type.Results)
		s.scanFieldListTypes(e.Type.Params)
		s.scanFieldListTypes(e.Type.Results)
		s.scanBlock(e.Body)
		s.pop()
	case *ast.ArrayType:
		s.scanExpr(e.Len)
		s.scanExpr(e.Elt)
	case *ast.MapType:
		s.scanExpr(e.Key)
		s.scanExpr(e.Value)
	case *ast.ChanType:
		s.scanExpr(e.Value)
	case *ast.StructType:
		s.scanFieldListTypes(e.Fields)
	case *ast.InterfaceType:
		s.scanFieldListTypes(e.Methods)
	case *ast.FuncType:
		s.scanFieldListTypes(e.Params)
		s.scanFieldListTypes(e.Results)
	case *ast.Ellipsis:
		s.scanExpr(e.Elt)
	case *ast.BasicLit:
	}
}
