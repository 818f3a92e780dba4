package toolchain

import (
	"fmt"
	"plugin"
	"reflect"
)

// LoadError reports that a built artifact could not be bound: the object
// failed to load, the exported symbol is absent, or its signature does not
// match the target function's declared signature.
type LoadError struct {
	Path   string
	Symbol string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s from %s: %s", e.Symbol, e.Path, e.Reason)
}

// Loader extracts a callable symbol from a compiled artifact. The
// production implementation opens Go plugins; tests substitute fakes.
type Loader interface {
	// Load opens the artifact at path and returns the callable bound to
	// symbol. When sig is non-nil the symbol's type must match it exactly.
	Load(path, symbol string, sig reflect.Type) (reflect.Value, error)
}

// PluginLoader loads artifacts through the runtime plugin mechanism.
type PluginLoader struct{}

func (PluginLoader) Load(path, symbol string, sig reflect.Type) (reflect.Value, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return reflect.Value{}, &LoadError{Path: path, Symbol: symbol, Reason: fmt.Sprintf("opening artifact: %v", err)}
	}

	sym, err := p.Lookup(symbol)
	if err != nil {
		return reflect.Value{}, &LoadError{Path: path, Symbol: symbol, Reason: "symbol not found in artifact"}
	}

	// Package-level vars surface as pointers to their values.
	v := reflect.ValueOf(sym)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Func {
		return reflect.Value{}, &LoadError{Path: path, Symbol: symbol, Reason: fmt.Sprintf("symbol is %s, not a function", v.Kind())}
	}
	if sig != nil && v.Type() != sig {
		return reflect.Value{}, &LoadError{
			Path:   path,
			Symbol: symbol,
			Reason: fmt.Sprintf("signature mismatch: artifact has %s, caller expects %s", v.Type(), sig),
		}
	}
	return v, nil
}
