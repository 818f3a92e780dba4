package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nativize/nativize/internal/source"
)

// ResolutionError reports that a definition required for inlining could not
// be produced: the name classified as a registered dependency, but its
// fragment cannot be scanned.
type ResolutionError struct {
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %s", e.Name, e.Reason)
}

// Entry is one definition in a dependency closure: a registered fragment
// plus the names of other closure members it references. Refs drive the
// synthesizer's topological ordering.
type Entry struct {
	Name string
	Kind source.Kind
	Text string
	Refs []string
}

// Closure is the transitive set of definitions the target function needs to
// run standalone, plus the import specs the closure actually uses.
//
// Invariant: every name in any entry's Refs either appears as a closure
// entry or is the target itself. Identifiers that classify as neither a
// registered function, type, nor constant are assumed to be satisfied by the
// ambient environment (imports or the toolchain's universe) and never fail
// resolution.
type Closure struct {
	Target     *source.FunctionRecord
	TargetRefs []string
	Entries    []Entry
	Imports    []string
}

// Entry returns the closure entry with the given name.
func (c *Closure) Entry(name string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns the sorted names of all closure entries.
func (c *Closure) Names() []string {
	names := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve computes the dependency closure of a function record against its
// registry. The walk is a fixed point over a visited set keyed by name, so
// self-recursive and mutually recursive graphs terminate: a name is scanned
// once no matter how many entries reference it.
func Resolve(reg *source.Registry, rec *source.FunctionRecord) (*Closure, error) {
	targetRefs, err := scanFragmentRefs(rec.Name, rec.Text)
	if err != nil {
		return nil, &ResolutionError{Name: rec.Name, Reason: err.Error()}
	}

	c := &Closure{Target: rec}
	visited := map[string]bool{rec.Name: true}

	var walk func(names []string) error
	walk = func(names []string) error {
		for _, name := range names {
			if visited[name] {
				continue
			}
			frag, ok := classify(reg, name)
			if !ok {
				// External identifier: left to the ambient environment.
				continue
			}
			visited[name] = true

			refs, err := scanFragmentRefs(name, source.StripMarkers(frag.Text))
			if err != nil {
				return &ResolutionError{Name: name, Reason: fmt.Sprintf("required definition cannot be scanned: %v", err)}
			}
			entry := Entry{
				Name: name,
				Kind: frag.Kind,
				Text: source.StripMarkers(frag.Text),
				Refs: keepKnown(reg, rec.Name, refs),
			}
			c.Entries = append(c.Entries, entry)

			if err := walk(refs); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(targetRefs); err != nil {
		return nil, err
	}

	c.TargetRefs = keepKnown(reg, rec.Name, targetRefs)
	sort.Slice(c.Entries, func(i, j int) bool { return c.Entries[i].Name < c.Entries[j].Name })
	c.Imports = usedImports(reg, c)
	return c, nil
}

// classify matches a free identifier against the registry's known names.
// Functions win over types, types over constants, mirroring lookup order in
// the original resolver.
func classify(reg *source.Registry, name string) (source.Fragment, bool) {
	if frag, ok := reg.Func(name); ok {
		return frag, true
	}
	if frag, ok := reg.Type(name); ok {
		return frag, true
	}
	if frag, ok := reg.Const(name); ok {
		return frag, true
	}
	return source.Fragment{}, false
}

// keepKnown filters a scanned ref list down to names that resolve inside the
// registry (including the target itself, for recursive references).
func keepKnown(reg *source.Registry, target string, refs []string) []string {
	var out []string
	for _, ref := range refs {
		if ref == target {
			out = append(out, ref)
			continue
		}
		if _, ok := classify(reg, ref); ok {
			out = append(out, ref)
		}
	}
	return out
}

// usedImports selects the registered import specs whose local package name
// is referenced by the target or any closure entry. Only referenced specs
// are re-emitted: the toolchain rejects unused imports.
func usedImports(reg *source.Registry, c *Closure) []string {
	referenced := make(map[string]bool)
	for _, ref := range c.allRefs() {
		referenced[ref] = true
	}

	var used []string
	for _, spec := range reg.Imports() {
		if referenced[importLocalName(spec)] {
			used = append(used, spec)
		}
	}
	return used
}

func (c *Closure) allRefs() []string {
	seen := make(map[string]bool)
	var all []string
	add := func(refs []string) {
		for _, r := range refs {
			if !seen[r] {
				seen[r] = true
				all = append(all, r)
			}
		}
	}
	targetRefs, err := scanFragmentRefs(c.Target.Name, c.Target.Text)
	if err == nil {
		add(targetRefs)
	}
	for _, e := range c.Entries {
		refs, err := scanFragmentRefs(e.Name, e.Text)
		if err == nil {
			add(refs)
		}
	}
	return all
}

// importLocalName derives the name an import spec binds in the file scope:
// the explicit alias if present, otherwise the last path element. Module
// paths whose final element is a version suffix (".../v2") use the element
// before it.
func importLocalName(spec string) string {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexAny(spec, " \t"); i >= 0 {
		return spec[:i]
	}
	path := strings.Trim(spec, `"`)
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	if len(parts) > 1 && len(last) > 1 && last[0] == 'v' && isDigits(last[1:]) {
		last = parts[len(parts)-2]
	}
	return last
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
