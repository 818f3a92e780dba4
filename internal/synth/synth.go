// Package synth assembles self-contained compilation units: a target
// function plus its resolved dependency closure, ordered so that every
// definition precedes its first reference, with cyclic groups emitted as one
// contiguous block.
package synth

import (
	"fmt"
	"strings"

	"github.com/nativize/nativize/internal/resolve"
)

// symbolPrefix is prepended to the target's name to form the exported
// symbol the orchestrator looks up in the built artifact.
const symbolPrefix = "Nativized_"

// SynthesisError reports an un-orderable structural conflict while
// assembling a unit, such as two closure entries claiming the same name with
// different bodies.
type SynthesisError struct {
	Name   string
	Reason string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize %s: %s", e.Name, e.Reason)
}

// Unit is a synthesized, self-contained translation unit. Text is the full
// source; Symbol is the exported name bound to the target function inside
// the built artifact.
type Unit struct {
	Target    string
	Qualified string
	Symbol    string
	Text      string
}

// Synthesize produces the compilation unit for a resolved closure:
// imports first, dependency definitions in topological order (cyclic groups
// as one block, members name-sorted), the target function last, then the
// exported symbol binding. Entries registered under multiple names with the
// same body (grouped const blocks) are emitted once.
func Synthesize(c *resolve.Closure) (*Unit, error) {
	if err := checkConflicts(c); err != nil {
		return nil, err
	}

	graph := make(depGraph, len(c.Entries))
	texts := make(map[string]string, len(c.Entries))
	for _, e := range c.Entries {
		texts[e.Name] = e.Text
		refs := make([]string, 0, len(e.Refs))
		for _, ref := range e.Refs {
			// References to the target never constrain ordering: the
			// target is emitted last and resolved by forward reference.
			if ref != c.Target.Name && ref != e.Name {
				refs = append(refs, ref)
			}
		}
		graph[e.Name] = refs
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by nativize for %s. DO NOT EDIT.\npackage main\n", c.Target.QualifiedName())

	if len(c.Imports) > 0 {
		b.WriteString("\nimport (\n")
		for _, spec := range c.Imports {
			b.WriteString("\t" + spec + "\n")
		}
		b.WriteString(")\n")
	}

	emitted := make(map[string]bool)
	for _, group := range orderGroups(graph) {
		for _, name := range group {
			text := texts[name]
			if emitted[text] {
				continue
			}
			emitted[text] = true
			b.WriteString("\n" + text + "\n")
		}
	}

	b.WriteString("\n" + c.Target.Text + "\n")

	symbol := symbolPrefix + c.Target.Name
	fmt.Fprintf(&b, "\nvar %s = %s\n", symbol, c.Target.Name)

	return &Unit{
		Target:    c.Target.Name,
		Qualified: c.Target.QualifiedName(),
		Symbol:    symbol,
		Text:      b.String(),
	}, nil
}

// checkConflicts rejects closures with irreconcilable name collisions.
func checkConflicts(c *resolve.Closure) error {
	seen := make(map[string]string, len(c.Entries)+1)
	for _, e := range c.Entries {
		if prev, ok := seen[e.Name]; ok && prev != e.Text {
			return &SynthesisError{
				Name:   e.Name,
				Reason: "conflicting definitions with different bodies",
			}
		}
		seen[e.Name] = e.Text
	}
	if prev, ok := seen[c.Target.Name]; ok && prev != c.Target.Text {
		return &SynthesisError{
			Name:   c.Target.Name,
			Reason: "dependency closure redefines the target function",
		}
	}
	return nil
}
