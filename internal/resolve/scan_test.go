package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(t *testing.T, text string) []string {
	t.Helper()
	out, err := scanFragmentRefs("frag", text)
	require.NoError(t, err)
	return out
}

func TestScan_FreeIdentifiers(t *testing.T) {
	got := refs(t, "func f(a int) int {\n\treturn helper(a) + limit\n}")
	assert.Equal(t, []string{"helper", "int", "limit"}, got)
}

func TestScan_ParamsAndResultsAreBound(t *testing.T) {
	got := refs(t, "func f(a, b float64) (sum float64) {\n\tsum = a + b\n\treturn sum\n}")
	assert.Equal(t, []string{"float64"}, got)
}

func TestScan_ShortVarDeclShadows(t *testing.T) {
	got := refs(t, "func f() int {\n\thelper := 3\n\treturn helper\n}")
	assert.Equal(t, []string{"int"}, got)
}

func TestScan_RHSScannedBeforeBinding(t *testing.T) {
	// `helper := helper()` uses the outer helper on the right-hand side.
	got := refs(t, "func f() int {\n\thelper := helper()\n\treturn helper\n}")
	assert.Contains(t, got, "helper")
}

func TestScan_RangeVariablesBound(t *testing.T) {
	got := refs(t, "func f(xs []int) int {\n\ttotal := 0\n\tfor _, x := range xs {\n\t\ttotal += x\n\t}\n\treturn total\n}")
	assert.Equal(t, []string{"int"}, got)
}

func TestScan_SelectorBaseOnly(t *testing.T) {
	got := refs(t, "func f(x float64) float64 {\n\treturn math.Sqrt(x)\n}")
	assert.Equal(t, []string{"float64", "math"}, got)
}

func TestScan_StructLiteralKeysSkipped(t *testing.T) {
	got := refs(t, "func f() point {\n\treturn point{x: 1, y: 2}\n}")
	assert.Equal(t, []string{"point"}, got)
}

func TestScan_FuncLitParamsBound(t *testing.T) {
	got := refs(t, "func f() int {\n\tg := func(n int) int { return n * factor }\n\treturn g(2)\n}")
	assert.Equal(t, []string{"factor", "int"}, got)
}

func TestScan_TypeFragment(t *testing.T) {
	got := refs(t, "type wrapper struct {\n\tinner point\n\tcount int\n}")
	assert.Equal(t, []string{"int", "point"}, got)
}

func TestScan_ConstFragment(t *testing.T) {
	got := refs(t, "const area = width * height")
	assert.Equal(t, []string{"height", "width"}, got)
}

func TestScan_GroupedConstOwnNamesBound(t *testing.T) {
	got := refs(t, "const (\n\twidth  = 3\n\theight = width * 2\n)")
	assert.Empty(t, got)
}

func TestScan_IfAndSwitchScopes(t *testing.T) {
	got := refs(t, "func f(n int) string {\n\tif v := n * 2; v > threshold {\n\t\treturn big\n\t}\n\tswitch m := n; m {\n\tcase 0:\n\t\treturn zero\n\t}\n\treturn other\n}")
	assert.Equal(t, []string{"big", "int", "other", "string", "threshold", "zero"}, got)
}

func TestScan_Unparsable(t *testing.T) {
	_, err := scanFragmentRefs("bad", "func ( {")
	assert.Error(t, err)
}
