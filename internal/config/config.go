// Package config loads and validates nativize configuration files.
//
// Configuration is YAML on disk, validated against an embedded CUE schema
// before any field is trusted. Every field is optional; absent fields fall
// back to defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/nativize/nativize/internal/toolchain"
)

//go:embed schema.cue
var schemaCUE string

// DefaultCapacity bounds the artifact cache when no capacity is configured.
const DefaultCapacity = 500

// CacheConfig locates and bounds the on-disk artifact cache.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	Capacity int    `yaml:"capacity"`
}

// Config is the resolved nativize configuration.
type Config struct {
	Cache      CacheConfig     `yaml:"cache"`
	Profile    string          `yaml:"profile"`
	Directives map[string]bool `yaml:"directives"`
	Flags      []string        `yaml:"flags"`
	Verbose    bool            `yaml:"verbose"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Dir:      defaultCacheDir(),
			Capacity: DefaultCapacity,
		},
		Profile: "conservative",
	}
}

func defaultCacheDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "nativize")
	}
	return ".nativize"
}

// Load reads and validates the YAML configuration at path. A missing file
// is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML configuration bytes and applies defaults to any
// absent field.
func Parse(data []byte) (Config, error) {
	// Decode generically first so the schema sees the document as written,
	// including fields the struct would silently drop.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = defaultCacheDir()
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = DefaultCapacity
	}
	if cfg.Profile == "" {
		cfg.Profile = "conservative"
	}
	cfg.Profile = string(toolchain.NormalizeProfile(toolchain.Profile(cfg.Profile)))
	return cfg, nil
}

// Toolchain renders the configured compiler defaults as a toolchain
// configuration. Sites and CLI commands apply their explicit options over
// this seed, so a profile, directive, or flag set in the file reaches every
// fingerprint derived under it.
func (c Config) Toolchain() toolchain.Config {
	tc := toolchain.Config{
		Profile: toolchain.NormalizeProfile(toolchain.Profile(c.Profile)),
	}
	if len(c.Directives) > 0 {
		tc.Directives = make(map[string]string, len(c.Directives))
		for name, on := range c.Directives {
			tc.Directives[name] = strconv.FormatBool(on)
		}
	}
	tc.ExtraFlags = append([]string(nil), c.Flags...)
	return tc
}

func validate(raw map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
