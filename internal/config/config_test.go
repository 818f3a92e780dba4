package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nativize/nativize/internal/toolchain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, cfg.Cache.Capacity)
	assert.Equal(t, "conservative", cfg.Profile)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.False(t, cfg.Verbose)
}

func TestParseFullDocument(t *testing.T) {
	cfg, err := Parse([]byte(`
cache:
  dir: /var/cache/nativize
  capacity: 32
profile: aggressive
directives:
  boundscheck: false
  inline: true
flags:
  - -trimpath
verbose: true
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/nativize", cfg.Cache.Dir)
	assert.Equal(t, 32, cfg.Cache.Capacity)
	assert.Equal(t, "aggressive", cfg.Profile)
	assert.Equal(t, map[string]bool{"boundscheck": false, "inline": true}, cfg.Directives)
	assert.Equal(t, []string{"-trimpath"}, cfg.Flags)
	assert.True(t, cfg.Verbose)
}

func TestParsePartialDocumentFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("profile: aggressive\n"))
	require.NoError(t, err)
	assert.Equal(t, "aggressive", cfg.Profile)
	assert.Equal(t, DefaultCapacity, cfg.Cache.Capacity)
	assert.NotEmpty(t, cfg.Cache.Dir)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default().Profile, cfg.Profile)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown profile":     "profile: turbo\n",
		"negative capacity":   "cache:\n  capacity: -1\n",
		"zero capacity":       "cache:\n  capacity: 0\n",
		"non-bool directive":  "directives:\n  inline: sometimes\n",
		"unknown field":       "turbo: true\n",
		"empty flag":          "flags:\n  - \"\"\n",
		"malformed yaml":      "cache: [unclosed\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nativize.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  capacity: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cache.Capacity)
}

func TestParseNormalizesProfileAlias(t *testing.T) {
	cfg, err := Parse([]byte("profile: fully-custom\n"))
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Profile)
}

func TestToolchainConversion(t *testing.T) {
	cfg, err := Parse([]byte(`
profile: aggressive
directives:
  inline: false
  boundscheck: true
flags:
  - -trimpath
`))
	require.NoError(t, err)

	tc := cfg.Toolchain()
	assert.Equal(t, toolchain.ProfileAggressive, tc.Profile)
	assert.Equal(t, map[string]string{"inline": "false", "boundscheck": "true"}, tc.Directives)
	assert.Equal(t, []string{"-trimpath"}, tc.ExtraFlags)
	require.NoError(t, tc.Validate())
}

func TestToolchainConversionOfDefaults(t *testing.T) {
	tc := Default().Toolchain()
	assert.Equal(t, toolchain.ProfileConservative, tc.Profile)
	assert.Empty(t, tc.Directives)
	assert.Empty(t, tc.ExtraFlags)
}
