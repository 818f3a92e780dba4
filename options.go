package nativize

import (
	"github.com/nativize/nativize/internal/toolchain"
)

// Profile selects the default toolchain flag set for a decoration site.
type Profile = toolchain.Profile

const (
	// Conservative adds no extra optimization flags.
	Conservative = toolchain.ProfileConservative
	// Aggressive enables maximal optimization and disables runtime safety
	// checks unless a directive explicitly overrides one.
	Aggressive = toolchain.ProfileAggressive
	// Custom applies only the directives and flags supplied explicitly.
	Custom = toolchain.ProfileCustom
)

// Directive names accepted by WithDirectives.
const (
	DirectiveBoundsCheck = toolchain.DirectiveBoundsCheck
	DirectiveInline      = toolchain.DirectiveInline
	DirectiveCheckPtr    = toolchain.DirectiveCheckPtr
)

type siteOptions struct {
	cfg     toolchain.Config
	verbose bool
}

// Option configures one decoration site. The resulting compiler
// configuration is immutable for the life of the site.
type Option func(*siteOptions)

// WithProfile selects the optimization profile, overriding the service's
// configured default. Alias spellings are canonicalized so they fingerprint
// identically.
func WithProfile(p Profile) Option {
	return func(o *siteOptions) { o.cfg.Profile = toolchain.NormalizeProfile(p) }
}

// WithDirectives merges translator directives over the profile's defaults.
// Explicit entries always win.
func WithDirectives(directives map[string]string) Option {
	return func(o *siteOptions) {
		if o.cfg.Directives == nil {
			o.cfg.Directives = make(map[string]string, len(directives))
		}
		for name, value := range directives {
			o.cfg.Directives[name] = value
		}
	}
}

// WithExtraFlags appends raw flags verbatim to the toolchain invocation.
func WithExtraFlags(flags ...string) Option {
	return func(o *siteOptions) {
		o.cfg.ExtraFlags = append(o.cfg.ExtraFlags, flags...)
	}
}

// WithVerbose emits diagnostic text on toolchain failure and retains the
// synthesized source next to the compiled artifact for inspection.
func WithVerbose(verbose bool) Option {
	return func(o *siteOptions) { o.verbose = verbose }
}

// buildOptions resolves options with no service seed. Service-backed paths
// go through Service.siteOptions instead, which layers the configured
// defaults underneath.
func buildOptions(opts []Option) siteOptions {
	o := siteOptions{cfg: toolchain.Config{Profile: toolchain.ProfileConservative}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
