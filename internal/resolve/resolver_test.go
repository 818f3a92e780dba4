package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nativize/nativize/internal/source"
)

func mustRecord(t *testing.T, reg *source.Registry, name string) *source.FunctionRecord {
	t.Helper()
	rec, err := source.Introspect(reg, name)
	require.NoError(t, err)
	return rec
}

func TestResolve_DirectDependency(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterFunc("square", "func square(x int) int { return x * x }"))
	require.NoError(t, reg.RegisterFunc("sumsq", "func sumsq(a, b int) int { return square(a) + square(b) }"))

	c, err := Resolve(reg, mustRecord(t, reg, "sumsq"))
	require.NoError(t, err)

	assert.Equal(t, []string{"square"}, c.Names())
	assert.Equal(t, []string{"square"}, c.TargetRefs)
}

func TestResolve_TransitiveDependency(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterFunc("base", "func base() int { return 1 }"))
	require.NoError(t, reg.RegisterFunc("mid", "func mid() int { return base() + 1 }"))
	require.NoError(t, reg.RegisterFunc("top", "func top() int { return mid() + 1 }"))

	c, err := Resolve(reg, mustRecord(t, reg, "top"))
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "mid"}, c.Names())

	mid, ok := c.Entry("mid")
	require.True(t, ok)
	assert.Equal(t, []string{"base"}, mid.Refs)
}

func TestResolve_SelfRecursionTerminates(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterFunc("fib", "func fib(n int) int {\n\tif n <= 1 {\n\t\treturn n\n\t}\n\treturn fib(n-1) + fib(n-2)\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "fib"))
	require.NoError(t, err)

	// The target is not its own closure entry; the recursive ref is kept.
	assert.Empty(t, c.Entries)
	assert.Equal(t, []string{"fib"}, c.TargetRefs)
}

func TestResolve_MutualRecursionTerminates(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterFunc("isEven", "func isEven(n int) bool {\n\tif n == 0 {\n\t\treturn true\n\t}\n\treturn isOdd(n - 1)\n}"))
	require.NoError(t, reg.RegisterFunc("isOdd", "func isOdd(n int) bool {\n\tif n == 0 {\n\t\treturn false\n\t}\n\treturn isEven(n - 1)\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "isEven"))
	require.NoError(t, err)

	assert.Equal(t, []string{"isOdd"}, c.Names())
	odd, ok := c.Entry("isOdd")
	require.True(t, ok)
	assert.Equal(t, []string{"isEven"}, odd.Refs)
}

func TestResolve_TypesAndConsts(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterType("point", "type point struct {\n\tx, y float64\n}"))
	require.NoError(t, reg.RegisterConst("origin", "const origin = 0.0"))
	require.NoError(t, reg.RegisterFunc("dist", "func dist(p point) float64 {\n\treturn p.x - origin\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "dist"))
	require.NoError(t, err)

	assert.Equal(t, []string{"origin", "point"}, c.Names())
}

func TestResolve_UnknownIdentifierIsAmbient(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterFunc("noisy", "func noisy(x float64) float64 {\n\treturn clamp(x) + 1\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "noisy"))
	require.NoError(t, err)

	// clamp resolves to nothing known; resolution does not fail.
	assert.Empty(t, c.Entries)
	assert.Empty(t, c.TargetRefs)
}

func TestResolve_LocalShadowingIsNotADependency(t *testing.T) {
	reg := source.NewRegistry("example")
	require.NoError(t, reg.RegisterFunc("square", "func square(x int) int { return x * x }"))
	require.NoError(t, reg.RegisterFunc("shadow", "func shadow(n int) int {\n\tsquare := n + 1\n\treturn square * 2\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "shadow"))
	require.NoError(t, err)

	assert.Empty(t, c.Entries)
}

func TestResolve_CollectsUsedImportsOnly(t *testing.T) {
	reg := source.NewRegistry("example")
	reg.RegisterImport(`"math"`)
	reg.RegisterImport(`"strings"`)
	require.NoError(t, reg.RegisterFunc("root", "func root(x float64) float64 {\n\treturn math.Sqrt(x)\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "root"))
	require.NoError(t, err)

	assert.Equal(t, []string{`"math"`}, c.Imports)
}

func TestResolve_ImportsFromDependencyBodies(t *testing.T) {
	reg := source.NewRegistry("example")
	reg.RegisterImport(`"math"`)
	require.NoError(t, reg.RegisterFunc("magnitude", "func magnitude(x float64) float64 {\n\treturn math.Abs(x)\n}"))
	require.NoError(t, reg.RegisterFunc("scaled", "func scaled(x float64) float64 {\n\treturn magnitude(x) * 2\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "scaled"))
	require.NoError(t, err)

	// The import is referenced only inside the dependency's body.
	assert.Equal(t, []string{`"math"`}, c.Imports)
}

func TestResolve_AliasedImport(t *testing.T) {
	reg := source.NewRegistry("example")
	reg.RegisterImport(`big "math/big"`)
	require.NoError(t, reg.RegisterFunc("zero", "func zero() *big.Int {\n\treturn big.NewInt(0)\n}"))

	c, err := Resolve(reg, mustRecord(t, reg, "zero"))
	require.NoError(t, err)

	assert.Equal(t, []string{`big "math/big"`}, c.Imports)
}

func TestImportLocalName(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{`"math"`, "math"},
		{`"math/rand"`, "rand"},
		{`"math/rand/v2"`, "rand"},
		{`r "math/rand"`, "r"},
		{`"strings"`, "strings"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, importLocalName(tt.spec), tt.spec)
	}
}
