package scenario

import (
	"testing"

	"github.com/cottand/jinfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvironment(t *testing.T) *environment {
	env, err := newEnvironment(&Scenario{
		File: "parse.yaml",
		Classes: []Class{
			{Name: "com.example.Outer", Params: []TypeParameter{{Name: "T"}}},
			{Name: "Inner", Params: []TypeParameter{{Name: "U", Bounds: []string{"T"}}}, Enclosing: "Outer"},
			{Name: "Ord", Params: []TypeParameter{{Name: "B", Bounds: []string{"Number & Comparable<B>"}}}},
		},
	})
	require.NoError(t, err)
	return env
}

func TestParseType(t *testing.T) {
	env := testEnvironment(t)
	inner, _ := env.class("Inner")
	ord, _ := env.class("Ord")

	testCases := []struct {
		expr     string
		scope    types.GenericDeclaration
		expected string
	}{
		{expr: "String", expected: "String"},
		{expr: "java.util.List<String>", expected: "List<String>"},
		{expr: "Map<String, ? extends Number>", expected: "Map<String, ? extends Number>"},
		{expr: "List<? super Integer>", expected: "List<? super Integer>"},
		{expr: "List<?>", expected: "List<?>"},
		{expr: "List<? extends Object>", expected: "List<?>"},
		{expr: "int[][]", expected: "int[][]"},
		{expr: "Map<String, List<Integer>>", expected: "Map<String, List<Integer>>"},
		{expr: "Cloneable & Number", expected: "Number & Cloneable"},
		{expr: "List<? extends Number & Cloneable>", expected: "List<? extends Number & Cloneable>"},
		{expr: "Outer<String>.Inner<Integer>", expected: "Outer<String>.Inner<Integer>"},
		{expr: "com.example.Outer<T>", scope: inner, expected: "Outer<T>"},
		{expr: "U[]", scope: inner, expected: "U[]"},
		{expr: "Ord<B>", scope: ord, expected: "Ord<B>"},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			parsed, err := env.parse(tc.scope, tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, parsed.String())
		})
	}
}

func TestParseTypeResolvesDeclarations(t *testing.T) {
	env := testEnvironment(t)
	inner, _ := env.class("Inner")
	outer, _ := env.class("Outer")

	parsed, err := env.parse(inner, "Map<T, U>")
	require.NoError(t, err)
	args := parsed.(*types.Parameterized).Arguments()
	assert.Same(t, outer.TypeParameters()[0], args[0])
	assert.Same(t, inner.TypeParameters()[0], args[1])
	assert.Equal(t, []types.Type{outer.TypeParameters()[0]}, inner.TypeParameters()[0].Bounds())

	ord, _ := env.class("Ord")
	b := ord.TypeParameters()[0]
	assert.Equal(t, []types.Type{types.Number, types.NewParameterized(types.Comparable, b)}, b.Bounds())

	parsed, err = env.parse(nil, "List")
	require.NoError(t, err)
	assert.Same(t, types.List, parsed)

	parsed, err = env.parse(nil, "Outer<String>.Inner<Integer>")
	require.NoError(t, err)
	owned := parsed.(*types.Parameterized)
	assert.Same(t, inner, owned.Raw())
	assert.True(t, types.Equal(types.NewParameterized(outer, types.String), owned.Owner()))
}

func TestParseTypeErrors(t *testing.T) {
	env := testEnvironment(t)
	testCases := []struct {
		expr    string
		message string
	}{
		{expr: "", message: "expected a type"},
		{expr: "Foo", message: "unknown type Foo"},
		{expr: "T", message: "unknown type T"},
		{expr: "List<String", message: `expected ">"`},
		{expr: "String<Integer>", message: "String cannot take type arguments"},
		{expr: "Map<String>", message: "Map expects 2 type arguments but got 1"},
		{expr: "List<String> x", message: "unexpected x after type"},
		{expr: "Outer<String>.Nope<Integer>", message: "unknown member class Nope"},
		{expr: "java.util.Lisst", message: "unknown type java.util.Lisst"},
		{expr: "List<>", message: "expected a type"},
		{expr: "int[", message: `expected "]"`},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := env.parse(nil, tc.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}
