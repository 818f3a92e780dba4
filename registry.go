// Package nativize marks individual functions for ahead-of-need native
// compilation. A decorated call site transparently rebinds to a compiled
// artifact once its self-contained unit has been synthesized, fingerprinted,
// and built; until then, and whenever compilation fails, calls fall back to
// the original function.
package nativize

import (
	"github.com/nativize/nativize/internal/source"
)

// Registry holds the addressable source fragments of one namespace. A
// systems runtime cannot recover a function's literal text by reflection,
// so fragments are supplied explicitly, either registered one by one or
// collected by a preprocessing pass over a source directory.
type Registry struct {
	src *source.Registry
}

// NewRegistry creates an empty fragment registry for a namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{src: source.NewRegistry(namespace)}
}

// LoadDir collects fragments from every Go source file in dir, skipping
// test files. Methods are ignored; only free functions, types, constants,
// and imports are registered.
func (r *Registry) LoadDir(dir string) error {
	return source.LoadDir(r.src, dir)
}

// RegisterFunc registers a function fragment. The text must contain exactly
// one non-method function declaration matching name.
func (r *Registry) RegisterFunc(name, text string) error {
	return r.src.RegisterFunc(name, text)
}

// RegisterType registers a type definition fragment.
func (r *Registry) RegisterType(name, text string) error {
	return r.src.RegisterType(name, text)
}

// RegisterConst registers a constant fragment under name. A grouped const
// block is registered once per declared name with the whole block as text.
func (r *Registry) RegisterConst(name, text string) error {
	return r.src.RegisterConst(name, text)
}

// RegisterImport records an import spec for re-emission into units that
// reference the imported package.
func (r *Registry) RegisterImport(spec string) {
	r.src.RegisterImport(spec)
}

// FuncNames returns the sorted names of all registered functions.
func (r *Registry) FuncNames() []string {
	return r.src.FuncNames()
}
