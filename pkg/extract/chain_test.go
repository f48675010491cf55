package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainFirstMatchWins(t *testing.T) {
	e := NewEvaluator()
	chain := Chain{
		{Expression: "nested.value"},
		{Expression: "fallback"},
	}

	result, ok := chain.First(e, map[string]any{
		"nested":   map[string]any{"value": "primary"},
		"fallback": "secondary",
	})
	require.True(t, ok)
	assert.Equal(t, "primary", result)
}

func TestChainSkipsEmptyMatches(t *testing.T) {
	e := NewEvaluator()
	chain := Chain{
		{Expression: "empty"},
		{Expression: "blank"},
		{Expression: "list"},
		{Expression: "fallback"},
	}

	result, ok := chain.First(e, map[string]any{
		"empty":    nil,
		"blank":    "   ",
		"list":     []any{},
		"fallback": "value",
	})
	require.True(t, ok)
	assert.Equal(t, "value", result)
}

func TestChainTransformRejection(t *testing.T) {
	e := NewEvaluator()
	rejectZero := func(v any) (any, bool) {
		n, ok := ToInt(v)
		if !ok || n == 0 {
			return nil, false
		}
		return n, true
	}
	chain := Chain{
		{Expression: "zero", Transform: rejectZero},
		{Expression: "nonzero", Transform: rejectZero},
	}

	result, ok := chain.First(e, map[string]any{
		"zero":    0.0,
		"nonzero": 5.0,
	})
	require.True(t, ok)
	assert.Equal(t, 5, result)
}

func TestChainNoMatch(t *testing.T) {
	e := NewEvaluator()
	chain := Chain{{Expression: "missing"}}

	_, ok := chain.First(e, map[string]any{"other": 1})
	assert.False(t, ok)
}

func TestChainInvalidExpressionSkipped(t *testing.T) {
	e := NewEvaluator()
	chain := Chain{
		{Expression: "not a valid ((( expression"},
		{Expression: "value"},
	}

	result, ok := chain.First(e, map[string]any{"value": "ok"})
	require.True(t, ok)
	assert.Equal(t, "ok", result)
}

func TestFirstString(t *testing.T) {
	e := NewEvaluator()

	s, ok := Chain{{Expression: "id"}}.FirstString(e, map[string]any{"id": 12345.0})
	require.True(t, ok)
	assert.Equal(t, "12345", s)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "42", Stringify(42.0))
	assert.Equal(t, "4.5", Stringify(4.5))
	assert.Equal(t, "text", Stringify(" text "))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "", Stringify(nil))
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat("12.5")
	require.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = ToFloat("not a number")
	assert.False(t, ok)

	_, ok = ToFloat(nil)
	assert.False(t, ok)
}
