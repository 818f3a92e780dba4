package nativize

import (
	"github.com/nativize/nativize/internal/resolve"
	"github.com/nativize/nativize/internal/source"
)

// ClosureEntry describes one resolved dependency of a target function.
type ClosureEntry struct {
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	Refs []string `json:"refs,omitempty"`
}

// ClosureInfo is the inspectable form of a dependency closure.
type ClosureInfo struct {
	Target       string         `json:"target"`
	Signature    string         `json:"signature"`
	Dependencies []ClosureEntry `json:"dependencies,omitempty"`
	Imports      []string       `json:"imports,omitempty"`
}

// ResolveClosure computes the dependency closure of a registered function
// without synthesizing or compiling anything.
func ResolveClosure(reg *Registry, name string) (*ClosureInfo, error) {
	rec, err := source.Introspect(reg.src, name)
	if err != nil {
		return nil, err
	}
	closure, err := resolve.Resolve(reg.src, rec)
	if err != nil {
		return nil, err
	}

	info := &ClosureInfo{
		Target:    rec.QualifiedName(),
		Signature: rec.Signature(),
		Imports:   closure.Imports,
	}
	for _, e := range closure.Entries {
		info.Dependencies = append(info.Dependencies, ClosureEntry{
			Name: e.Name,
			Kind: e.Kind.String(),
			Refs: e.Refs,
		})
	}
	return info, nil
}

// UnitInfo is the inspectable form of a synthesized unit.
type UnitInfo struct {
	Target      string `json:"target"`
	Symbol      string `json:"symbol"`
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
}

// SynthesizeUnit derives the compilation unit and fingerprint a decoration
// site with the given options would produce, without invoking the
// toolchain.
func SynthesizeUnit(reg *Registry, name string, opts ...Option) (*UnitInfo, error) {
	o := buildOptions(opts)
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	unit, _, fp, err := deriveUnit(reg.src, name, o.cfg)
	if err != nil {
		return nil, err
	}
	return &UnitInfo{
		Target:      unit.Qualified,
		Symbol:      unit.Symbol,
		Fingerprint: fp,
		Text:        unit.Text,
	}, nil
}
