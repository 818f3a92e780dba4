package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// extractTxtar materializes a txtar archive into a temp directory.
func extractTxtar(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	ar := txtar.Parse([]byte(archive))
	for _, f := range ar.Files {
		path := filepath.Join(dir, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return dir
}

const simpleTree = `
-- mathx.go --
package mathx

import (
	"math"
)

const scale = 2

// square returns x squared.
func square(x float64) float64 {
	return x * x
}

func hypot(a, b float64) float64 {
	return math.Sqrt(square(a) + square(b))
}
-- shapes.go --
package mathx

type rect struct {
	w, h float64
}

// area is a method and must not be registered.
func (r rect) area() float64 {
	return r.w * r.h
}

func perimeter(r rect) float64 {
	return scale * (r.w + r.h)
}
`

func TestLoadDir_RegistersTopLevelDecls(t *testing.T) {
	dir := extractTxtar(t, simpleTree)
	reg := NewRegistry("mathx")

	require.NoError(t, LoadDir(reg, dir))

	assert.Equal(t, []string{"hypot", "perimeter", "square"}, reg.FuncNames())
	assert.Equal(t, []string{"rect"}, reg.TypeNames())
	assert.Equal(t, []string{"scale"}, reg.ConstNames())
	assert.Equal(t, []string{`"math"`}, reg.Imports())
}

func TestLoadDir_FragmentTextExcludesDocComment(t *testing.T) {
	dir := extractTxtar(t, simpleTree)
	reg := NewRegistry("mathx")
	require.NoError(t, LoadDir(reg, dir))

	frag, ok := reg.Func("square")
	require.True(t, ok)
	assert.NotContains(t, frag.Text, "square returns")
	assert.Contains(t, frag.Text, "func square(x float64) float64")
}

func TestLoadDir_SkipsMethodsAndTests(t *testing.T) {
	dir := extractTxtar(t, simpleTree+`
-- mathx_test.go --
package mathx

func helperOnlyInTest() {}
`)
	reg := NewRegistry("mathx")
	require.NoError(t, LoadDir(reg, dir))

	_, ok := reg.Func("area")
	assert.False(t, ok)
	_, ok = reg.Func("helperOnlyInTest")
	assert.False(t, ok)
}

func TestLoadDir_TypeDeclarationText(t *testing.T) {
	dir := extractTxtar(t, simpleTree)
	reg := NewRegistry("mathx")
	require.NoError(t, LoadDir(reg, dir))

	frag, ok := reg.Type("rect")
	require.True(t, ok)
	assert.Contains(t, frag.Text, "type rect struct")
}

func TestLoadDir_EmptyDir(t *testing.T) {
	reg := NewRegistry("empty")
	err := LoadDir(reg, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Go source files")
}
