package idl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sciss/caustic/expr"
	"github.com/Sciss/caustic/literal"
)

func TestParseAddFoldsAtParseTime(t *testing.T) {
	doc := `{"op":"read","args":[{"op":"add","args":[{"lit":{"kind":"text","text":"foo"}},{"lit":{"kind":"text","text":"bar"}}]}]}`
	tx, err := Parse([]byte(doc))
	require.NoError(t, err)

	want := expr.Read(expr.Lit(literal.NewText("foobar")))
	assert.True(t, expr.Equal(tx, want))
}

func TestParseUnknownOperatorFails(t *testing.T) {
	_, err := Parse([]byte(`{"op":"frobnicate","args":[]}`))
	require.Error(t, err)
}

func TestParseUnknownLiteralKindFails(t *testing.T) {
	_, err := Parse([]byte(`{"lit":{"kind":"imaginary"}}`))
	require.Error(t, err)
}

func TestParseArityMismatchFails(t *testing.T) {
	_, err := Parse([]byte(`{"op":"add","args":[{"lit":{"kind":"real","real":1}}]}`))
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	tree := expr.Branch(
		expr.Read(expr.Lit(literal.NewText("k"))),
		expr.Lit(literal.NewReal(1)),
		expr.Lit(literal.NewReal(2)),
	)
	data, err := Serialize(tree)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, expr.Equal(tree, parsed))
}

func TestRoundTripAllLiteralKinds(t *testing.T) {
	for _, lit := range []literal.Literal{
		literal.Nothing,
		literal.True,
		literal.False,
		literal.NewReal(3.5),
		literal.NewText("hello"),
	} {
		tree := expr.Lit(lit)
		data, err := Serialize(tree)
		require.NoError(t, err)
		parsed, err := Parse(data)
		require.NoError(t, err)
		assert.True(t, expr.Equal(tree, parsed))
	}
}
