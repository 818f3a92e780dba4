package toolchain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Profile selects a default set of toolchain flags.
type Profile string

const (
	// ProfileConservative adds no extra optimization flags.
	ProfileConservative Profile = "conservative"
	// ProfileAggressive enables maximal optimization and disables runtime
	// safety checks unless a directive explicitly overrides one.
	ProfileAggressive Profile = "aggressive"
	// ProfileCustom applies only what the caller supplies.
	ProfileCustom Profile = "custom"
)

// profileAliases maps accepted alternate spellings onto canonical tokens.
var profileAliases = map[Profile]Profile{
	"fully-custom": ProfileCustom,
}

// NormalizeProfile canonicalizes accepted alias spellings so two sites
// naming the same profile differently share a fingerprint. Unknown tokens
// pass through for Validate to reject.
func NormalizeProfile(p Profile) Profile {
	if canonical, ok := profileAliases[p]; ok {
		return canonical
	}
	return p
}

// Directive names recognized by the translator mapping. Each maps to gc
// compiler flags on the build invocation.
const (
	DirectiveBoundsCheck = "boundscheck"
	DirectiveInline      = "inline"
	DirectiveCheckPtr    = "checkptr"
)

var knownDirectives = map[string]bool{
	DirectiveBoundsCheck: true,
	DirectiveInline:      true,
	DirectiveCheckPtr:    true,
}

// Config is the compiler configuration of one decoration site. It is
// immutable once built; two sites with equal canonical encodings share
// fingerprints and artifacts.
type Config struct {
	Profile    Profile
	Directives map[string]string
	ExtraFlags []string
}

// Clone deep-copies the configuration so per-site overrides never reach a
// shared default.
func (c Config) Clone() Config {
	out := Config{Profile: c.Profile}
	if len(c.Directives) > 0 {
		out.Directives = make(map[string]string, len(c.Directives))
		for name, value := range c.Directives {
			out.Directives[name] = value
		}
	}
	out.ExtraFlags = append([]string(nil), c.ExtraFlags...)
	return out
}

// Validate checks the profile and directive surface. Unknown directive
// names and non-boolean values are rejected up front rather than surfacing
// as toolchain failures later.
func (c Config) Validate() error {
	switch c.Profile {
	case ProfileConservative, ProfileAggressive, ProfileCustom:
	default:
		return fmt.Errorf("unknown optimization profile %q", c.Profile)
	}
	for name, value := range c.Directives {
		if !knownDirectives[name] {
			return fmt.Errorf("unknown compiler directive %q", name)
		}
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("compiler directive %q: value %q is not a boolean", name, value)
		}
	}
	return nil
}

// profileDirectives returns the default directive set of a profile.
func profileDirectives(p Profile) map[string]string {
	if p == ProfileAggressive {
		return map[string]string{
			DirectiveBoundsCheck: "false",
			DirectiveCheckPtr:    "false",
		}
	}
	return nil
}

// profileFlags returns the default raw flag set of a profile.
func profileFlags(p Profile) []string {
	if p == ProfileAggressive {
		return []string{"-trimpath", "-ldflags=-s -w"}
	}
	return nil
}

// merged resolves the effective directives and flags: the profile supplies
// defaults, explicit entries always win, and the custom profile starts from
// nothing.
func (c Config) merged() (map[string]string, []string) {
	directives := make(map[string]string)
	var flags []string
	if c.Profile != ProfileCustom {
		for k, v := range profileDirectives(c.Profile) {
			directives[k] = v
		}
		flags = append(flags, profileFlags(c.Profile)...)
	}
	for k, v := range c.Directives {
		directives[k] = v
	}
	flags = append(flags, c.ExtraFlags...)
	return directives, flags
}

// gcFlags translates the effective directives into gc compiler flags.
func gcFlags(directives map[string]string) []string {
	var out []string
	if v, ok := directives[DirectiveBoundsCheck]; ok {
		if b, _ := strconv.ParseBool(v); !b {
			out = append(out, "-B")
		}
	}
	if v, ok := directives[DirectiveInline]; ok {
		if b, _ := strconv.ParseBool(v); !b {
			out = append(out, "-l")
		}
	}
	if v, ok := directives[DirectiveCheckPtr]; ok {
		if b, _ := strconv.ParseBool(v); !b {
			out = append(out, "-d=checkptr=0")
		} else {
			out = append(out, "-d=checkptr=1")
		}
	}
	sort.Strings(out)
	return out
}

// BuildArgs derives the full argument list for the external build
// invocation producing a plugin artifact at out.
func (c Config) BuildArgs(out string) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	directives, flags := c.merged()

	args := []string{"build", "-buildmode=plugin"}
	args = append(args, flags...)
	if gc := gcFlags(directives); len(gc) > 0 {
		args = append(args, "-gcflags=all="+strings.Join(gc, " "))
	}
	args = append(args, "-o", out, ".")
	return args, nil
}

// Canonical renders the configuration for fingerprinting: profile, sorted
// directive entries, sorted extra flags. Byte-identical configurations
// always canonicalize identically; any field change alters the encoding.
func (c Config) Canonical() string {
	var b strings.Builder
	b.WriteString("profile=")
	b.WriteString(string(c.Profile))

	b.WriteString(";directives=")
	names := make([]string, 0, len(c.Directives))
	for name := range c.Directives {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(c.Directives[name])
	}

	b.WriteString(";flags=")
	flags := make([]string, len(c.ExtraFlags))
	copy(flags, c.ExtraFlags)
	sort.Strings(flags)
	b.WriteString(strings.Join(flags, ","))
	return b.String()
}
