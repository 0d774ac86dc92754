package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constLookup(values map[Position]float64) Lookup {
	return func(p Position) (float64, error) {
		if v, ok := values[p]; ok {
			return v, nil
		}
		return 0, nil
	}
}

func TestParseAndEvaluateArithmetic(t *testing.T) {
	ev, err := Parse("1+2*3")
	require.NoError(t, err)

	v, err := ev.Evaluate(constLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestOperatorPrecedenceAndParens(t *testing.T) {
	ev, err := Parse("(1+2)*3")
	require.NoError(t, err)

	v, err := ev.Evaluate(constLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)
}

func TestReferencedCellsDeduplicatedAndSorted(t *testing.T) {
	ev, err := Parse("B2+A1+B2+A1")
	require.NoError(t, err)

	refs := ev.ReferencedCells()
	assert.Equal(t, []Position{{Row: 0, Col: 0}, {Row: 1, Col: 1}}, refs)
}

func TestEvaluateUsesLookupForReferences(t *testing.T) {
	ev, err := Parse("A1+B1")
	require.NoError(t, err)

	values := map[Position]float64{
		{Row: 0, Col: 0}: 3,
		{Row: 0, Col: 1}: 4,
	}
	v, err := ev.Evaluate(constLookup(values))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestDivisionByZero(t *testing.T) {
	ev, err := Parse("1/0")
	require.NoError(t, err)

	_, err = ev.Evaluate(constLookup(nil))
	require.Error(t, err)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, ErrDiv0, evalErr.Kind)
}

func TestSumOverRange(t *testing.T) {
	ev, err := Parse("SUM(A1:A3)")
	require.NoError(t, err)

	values := map[Position]float64{
		{Row: 0, Col: 0}: 1,
		{Row: 1, Col: 0}: 2,
		{Row: 2, Col: 0}: 3,
	}
	v, err := ev.Evaluate(constLookup(values))
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	refs := ev.ReferencedCells()
	assert.Equal(t, []Position{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 2, Col: 0}}, refs)
}

func TestUnknownFunctionIsNameError(t *testing.T) {
	ev, err := Parse("NOPE(A1)")
	require.NoError(t, err)

	_, err = ev.Evaluate(constLookup(nil))
	require.Error(t, err)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, ErrName, evalErr.Kind)
}

func TestSyntaxErrorOnMalformedExpression(t *testing.T) {
	_, err := Parse("1+")
	require.Error(t, err)
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestSyntaxErrorOnUnbalancedParens(t *testing.T) {
	_, err := Parse("(1+2")
	require.Error(t, err)
}

func TestCanonicalExpressionMinimizesParens(t *testing.T) {
	ev, err := Parse("((1+2))")
	require.NoError(t, err)
	assert.Equal(t, "1+2", ev.CanonicalExpression())
}

func TestUnaryMinus(t *testing.T) {
	ev, err := Parse("-A1+5")
	require.NoError(t, err)
	v, err := ev.Evaluate(constLookup(map[Position]float64{{Row: 0, Col: 0}: 2}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}
