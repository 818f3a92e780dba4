package nativize

import (
	"errors"

	"github.com/nativize/nativize/internal/resolve"
	"github.com/nativize/nativize/internal/source"
	"github.com/nativize/nativize/internal/synth"
	"github.com/nativize/nativize/internal/toolchain"
)

// IsIntrospectionError reports whether err means a function's canonical
// source text could not be produced. Unrecoverable for that target.
func IsIntrospectionError(err error) bool {
	var e *source.IntrospectionError
	return errors.As(err, &e)
}

// IsResolutionError reports whether err means a required dependency
// definition could not be located. Unrecoverable for that target.
func IsResolutionError(err error) bool {
	var e *resolve.ResolutionError
	return errors.As(err, &e)
}

// IsSynthesisError reports whether err means the dependency closure could
// not be assembled into a unit. Unrecoverable for that target.
func IsSynthesisError(err error) bool {
	var e *synth.SynthesisError
	return errors.As(err, &e)
}

// IsCompileError reports whether err is an external toolchain failure. The
// affected fingerprint falls back to the original function and is not
// retried until the fingerprint changes.
func IsCompileError(err error) bool {
	var e *toolchain.CompileError
	return errors.As(err, &e)
}

// IsLoadError reports whether err means an artifact was produced but its
// target symbol is missing or signature-incompatible.
func IsLoadError(err error) bool {
	var e *toolchain.LoadError
	return errors.As(err, &e)
}

// CompileDiagnostics extracts the toolchain's diagnostic text from a
// compile failure.
func CompileDiagnostics(err error) (string, bool) {
	var e *toolchain.CompileError
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Diagnostics, true
}
