package source

import (
	"fmt"
	"go/parser"
	"sort"
	"strings"
	"sync"
)

// Kind classifies a registered source fragment.
type Kind int

const (
	KindFunc Kind = iota
	KindType
	KindConst
)

// String returns the lowercase kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindType:
		return "type"
	case KindConst:
		return "const"
	default:
		return "unknown"
	}
}

// Fragment is a single registered top-level definition: the literal source
// text of a function, type, or constant declaration.
type Fragment struct {
	Name string
	Kind Kind
	Text string
}

// Registry holds the addressable source fragments of one namespace.
//
// A namespace stands in for the declaring module of the original dynamic
// decorator: dependency resolution classifies identifiers against the
// function, type, and constant names registered here, and import specs
// registered here are re-emitted verbatim into synthesized units.
//
// Every mutation bumps a generation counter. Dispatch sites compare
// generations to detect that a fragment changed underneath them and
// re-derive their compilation unit.
type Registry struct {
	mu        sync.RWMutex
	namespace string
	gen       uint64

	funcs   map[string]Fragment
	types   map[string]Fragment
	consts  map[string]Fragment
	imports []string
}

// NewRegistry creates an empty registry for the given namespace name.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace: namespace,
		funcs:     make(map[string]Fragment),
		types:     make(map[string]Fragment),
		consts:    make(map[string]Fragment),
	}
}

// Namespace returns the namespace name the registry was created with.
func (r *Registry) Namespace() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namespace
}

// Generation returns the current mutation counter. It increases by one for
// every successful Register* call.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// RegisterFunc registers the source text of a free function. The text must
// parse as a single function declaration without a receiver; method bodies
// are not compilable and are rejected here rather than downstream.
func (r *Registry) RegisterFunc(name, text string) error {
	if err := checkFuncFragment(name, text); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = Fragment{Name: name, Kind: KindFunc, Text: text}
	r.gen++
	return nil
}

// RegisterType registers the source text of a type declaration.
func (r *Registry) RegisterType(name, text string) error {
	if err := checkFragmentParses(name, text); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = Fragment{Name: name, Kind: KindType, Text: text}
	r.gen++
	return nil
}

// RegisterConst registers the source text of a constant declaration. Grouped
// const blocks may be registered under each declared name with the same text;
// the synthesizer deduplicates identical bodies on emission.
func (r *Registry) RegisterConst(name, text string) error {
	if err := checkFragmentParses(name, text); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consts[name] = Fragment{Name: name, Kind: KindConst, Text: text}
	r.gen++
	return nil
}

// RegisterImport records an import spec (e.g. `"math"` or `big "math/big"`)
// for verbatim re-emission. Duplicate specs are ignored.
func (r *Registry) RegisterImport(spec string) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.imports {
		if existing == spec {
			return
		}
	}
	r.imports = append(r.imports, spec)
	r.gen++
}

// Func returns the registered function fragment for name.
func (r *Registry) Func(name string) (Fragment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[name]
	return f, ok
}

// Type returns the registered type fragment for name.
func (r *Registry) Type(name string) (Fragment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.types[name]
	return f, ok
}

// Const returns the registered constant fragment for name.
func (r *Registry) Const(name string) (Fragment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.consts[name]
	return f, ok
}

// Imports returns a copy of the registered import specs in registration order.
func (r *Registry) Imports() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.imports))
	copy(out, r.imports)
	return out
}

// FuncNames returns the sorted names of all registered functions.
func (r *Registry) FuncNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.funcs)
}

// TypeNames returns the sorted names of all registered types.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.types)
}

// ConstNames returns the sorted names of all registered constants.
func (r *Registry) ConstNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.consts)
}

func sortedKeys(m map[string]Fragment) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// checkFragmentParses verifies that a fragment is syntactically valid Go when
// placed at the top level of a file.
func checkFragmentParses(name, text string) error {
	if strings.TrimSpace(text) == "" {
		return &IntrospectionError{Name: name, Reason: "fragment text is empty"}
	}
	src := "package p\n\n" + StripMarkers(text)
	if _, err := parser.ParseFile(newFileSet(), name+".go", src, parser.SkipObjectResolution); err != nil {
		return &IntrospectionError{Name: name, Reason: fmt.Sprintf("fragment does not parse: %v", err)}
	}
	return nil
}

func checkFuncFragment(name, text string) error {
	if err := checkFragmentParses(name, text); err != nil {
		return err
	}
	decl, _, err := parseFuncDecl(name, StripMarkers(text))
	if err != nil {
		return err
	}
	if decl.Recv != nil {
		return &IntrospectionError{Name: name, Reason: "method bodies are not supported, only free functions"}
	}
	return nil
}
