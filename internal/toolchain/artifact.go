package toolchain

import (
	"os"
	"reflect"
)

// Artifact is a loaded native module reference: the compiled object on
// disk, the synthesized source retained alongside it (verbose mode only),
// and the exported symbol bound to the target function. An Artifact is
// exclusively owned by the cache entry holding it.
type Artifact struct {
	Fingerprint string
	Path        string
	SourcePath  string
	Symbol      reflect.Value
}

// Call invokes the bound symbol with the given arguments.
func (a *Artifact) Call(args []reflect.Value) []reflect.Value {
	return a.Symbol.Call(args)
}

// Release removes the artifact's on-disk files. The loaded code mapping
// stays resident for the life of the process; a released fingerprint simply
// recompiles on its next request.
func (a *Artifact) Release() {
	if a.Path != "" {
		os.Remove(a.Path)
	}
	if a.SourcePath != "" {
		os.Remove(a.SourcePath)
	}
}
