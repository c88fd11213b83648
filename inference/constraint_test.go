package inference

import (
	"testing"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	type expectation struct {
		equal, upper, lower []types.Type
	}
	testCases := []struct {
		name     string
		kind     Kind
		from, to func(a *types.InferenceVariable) types.Type
		expected expectation
	}{
		{
			name:     "equality of parameterized types",
			kind:     Equality,
			from:     func(a *types.InferenceVariable) types.Type { return types.NewParameterized(types.List, a) },
			to:       func(*types.InferenceVariable) types.Type { return types.NewParameterized(types.List, types.String) },
			expected: expectation{equal: []types.Type{types.String}},
		},
		{
			name:     "subtype through supertype",
			kind:     Subtype,
			from:     func(a *types.InferenceVariable) types.Type { return types.NewParameterized(types.ArrayList, a) },
			to:       func(*types.InferenceVariable) types.Type { return types.NewParameterized(types.Collection, types.Extends(types.Number)) },
			expected: expectation{upper: []types.Type{types.Number}},
		},
		{
			name:     "subtype against lower bounded wildcard",
			kind:     Subtype,
			from:     func(a *types.InferenceVariable) types.Type { return types.NewParameterized(types.List, a) },
			to:       func(*types.InferenceVariable) types.Type { return types.NewParameterized(types.List, types.Super(types.Integer)) },
			expected: expectation{lower: []types.Type{types.Integer}},
		},
		{
			name:     "containment of wildcards",
			kind:     Containment,
			from:     func(a *types.InferenceVariable) types.Type { return types.Extends(a) },
			to:       func(*types.InferenceVariable) types.Type { return types.Extends(types.Number) },
			expected: expectation{upper: []types.Type{types.Number}},
		},
		{
			name:     "equality of arrays",
			kind:     Equality,
			from:     func(a *types.InferenceVariable) types.Type { return types.NewArray(a) },
			to:       func(*types.InferenceVariable) types.Type { return types.NewArray(types.String) },
			expected: expectation{equal: []types.Type{types.String}},
		},
		{
			name:     "loose compatibility boxes",
			kind:     LooseCompatibility,
			from:     func(*types.InferenceVariable) types.Type { return types.PrimitiveInt },
			to:       func(a *types.InferenceVariable) types.Type { return a },
			expected: expectation{lower: []types.Type{types.Integer}},
		},
		{
			name:     "loose compatibility against a primitive",
			kind:     LooseCompatibility,
			from:     func(a *types.InferenceVariable) types.Type { return a },
			to:       func(*types.InferenceVariable) types.Type { return types.PrimitiveLong },
			expected: expectation{equal: []types.Type{types.Long}},
		},
		{
			name:     "subtype of intersection",
			kind:     Subtype,
			from:     func(a *types.InferenceVariable) types.Type { return a },
			to: func(*types.InferenceVariable) types.Type {
				return types.NewIntersection(types.Number, types.Cloneable)
			},
			expected: expectation{upper: []types.Type{types.NewIntersection(types.Number, types.Cloneable)}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBoundSet()
			a := newVariables(b, "a")[0]
			require.NoError(t, Reduce(tc.kind, tc.from(a), tc.to(a), b))

			bounds := boundsOf(t, b, a)
			assertTypes(t, tc.expected.equal, bounds.Equalities())
			assertTypes(t, tc.expected.upper, bounds.UpperBounds())
			assertTypes(t, tc.expected.lower, bounds.LowerBounds())
			assert.False(t, b.ContainsFalse())
		})
	}
}

func assertTypes(t *testing.T, expected, actual []types.Type) {
	t.Helper()
	if len(expected) == 0 {
		assert.Empty(t, actual)
		return
	}
	assert.Equal(t, expected, actual)
}

func TestReduceFalse(t *testing.T) {
	testCases := []struct {
		name     string
		kind     Kind
		from, to func(a *types.InferenceVariable) types.Type
	}{
		{
			name: "different proper types",
			kind: Equality,
			from: func(*types.InferenceVariable) types.Type { return types.String },
			to:   func(*types.InferenceVariable) types.Type { return types.Integer },
		},
		{
			name: "different classes",
			kind: Equality,
			from: func(a *types.InferenceVariable) types.Type { return types.NewParameterized(types.List, a) },
			to:   func(a *types.InferenceVariable) types.Type { return types.NewParameterized(types.Set, a) },
		},
		{
			name: "no such supertype",
			kind: Subtype,
			from: func(a *types.InferenceVariable) types.Type { return types.NewParameterized(types.List, a) },
			to:   func(*types.InferenceVariable) types.Type { return types.NewParameterized(types.Map, types.String, types.String) },
		},
		{
			name: "wildcard contained by a type",
			kind: Containment,
			from: func(*types.InferenceVariable) types.Type { return types.Unbounded() },
			to:   func(a *types.InferenceVariable) types.Type { return a },
		},
		{
			name: "strict compatibility never boxes",
			kind: StrictCompatibility,
			from: func(*types.InferenceVariable) types.Type { return types.PrimitiveInt },
			to:   func(a *types.InferenceVariable) types.Type { return a },
		},
		{
			name: "partially reduced",
			kind: Equality,
			from: func(a *types.InferenceVariable) types.Type {
				return types.NewParameterized(types.Map, a, types.Integer)
			},
			to: func(*types.InferenceVariable) types.Type {
				return types.NewParameterized(types.Map, types.String, types.String)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBoundSet()
			a := newVariables(b, "a")[0]
			err := Reduce(tc.kind, tc.from(a), tc.to(a), b)
			require.Error(t, err)
			assert.Equal(t, inferr.Contradiction, inferr.CodeOf(err))
			assert.True(t, b.ContainsFalse())

			bounds := boundsOf(t, b, a)
			assert.Empty(t, bounds.Equalities())
			assert.Empty(t, bounds.UpperBounds())
			assert.Empty(t, bounds.LowerBounds())
		})
	}
}

func TestConstraintFormulaString(t *testing.T) {
	f := ConstraintFormula{Kind: Subtype, From: types.Integer, To: types.Number}
	assert.Equal(t, "‹Integer <: Number›", f.String())
	assert.Equal(t, "<=", Containment.String())
}

func TestCaptureConversionOfUpperBoundedWildcard(t *testing.T) {
	r := NewResolver()
	captured, err := r.CaptureConversion(types.NewParameterized(types.Map, types.String, types.Extends(types.Number)))
	require.NoError(t, err)
	args := captured.Arguments()
	k, v := args[0].(*types.InferenceVariable), args[1].(*types.InferenceVariable)

	instantiation, ok := r.Bounds().Instantiation(k)
	require.True(t, ok)
	assert.Equal(t, types.String, instantiation)
	assert.ElementsMatch(t, []types.Type{types.Object, types.Number}, boundsOf(t, r.Bounds(), v).UpperBounds())

	c := boundsOf(t, r.Bounds(), v).CaptureConversion()
	require.NotNil(t, c)
	arg, ok := c.CapturedArgument(v)
	require.True(t, ok)
	assert.True(t, types.Equal(types.Extends(types.Number), arg))
	param, ok := c.CapturedParameter(v)
	require.True(t, ok)
	assert.Same(t, types.Map.TypeParameters()[1], param)
	assert.Equal(t, "Map<"+k.String()+", "+v.String()+"> = capture(Map<String, ? extends Number>)", c.String())

	result, err := r.Infer(v)
	require.NoError(t, err)
	capture, ok := result[v].(*types.TypeVariableCapture)
	require.True(t, ok)
	assert.Equal(t, []types.Type{types.Number}, capture.UpperBounds())
}

func TestCaptureConversionWithoutWildcards(t *testing.T) {
	r := NewResolver()
	listOfString := types.NewParameterized(types.List, types.String)
	captured, err := r.CaptureConversion(listOfString)
	require.NoError(t, err)
	assert.Same(t, listOfString, captured)
	assert.Empty(t, r.Bounds().InferenceVariables())
}

func TestCaptureConversionOfSelfBoundedParameter(t *testing.T) {
	r := NewResolver()
	captured, err := r.CaptureConversion(types.NewParameterized(types.Enum, types.Unbounded()))
	require.NoError(t, err)
	e := captured.Arguments()[0].(*types.InferenceVariable)

	upper := boundsOf(t, r.Bounds(), e).UpperBounds()
	assert.Contains(t, upper, types.Type(types.NewParameterized(types.Enum, e)))
	assert.Contains(t, upper, types.Type(types.Object))

	result, err := r.Infer(e)
	require.NoError(t, err)
	capture, ok := result[e].(*types.TypeVariableCapture)
	require.True(t, ok)
	assert.True(t, types.Equal(types.NewParameterized(types.Enum, capture), capture.UpperBounds()[0]))
}

func TestCapturedWildcardRejectsPriorEquality(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	require.NoError(t, b.Incorporate().Equality(a, types.String))
	c := NewCaptureConversion(types.NewParameterized(types.List, types.Unbounded()), []*types.InferenceVariable{a})

	err := b.Incorporate().CaptureConversion(c)
	require.Error(t, err)
	assert.Equal(t, inferr.Contradiction, inferr.CodeOf(err))
	assert.Empty(t, b.CaptureConversions())
	assert.Nil(t, boundsOf(t, b, a).CaptureConversion())
}

func TestCapturedWildcardChecksPriorUpperBound(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	require.NoError(t, b.Incorporate().Subtype(a, types.Integer))
	c := NewCaptureConversion(types.NewParameterized(types.List, types.Extends(types.Number)), []*types.InferenceVariable{a})

	err := b.Incorporate().CaptureConversion(c)
	require.Error(t, err)
	assert.Equal(t, inferr.Contradiction, inferr.CodeOf(err))

	ok := NewBoundSet()
	a = newVariables(ok, "a")[0]
	require.NoError(t, ok.Incorporate().Subtype(a, types.Number))
	c = NewCaptureConversion(types.NewParameterized(types.List, types.Extends(types.Integer)), []*types.InferenceVariable{a})
	require.NoError(t, ok.Incorporate().CaptureConversion(c))
}

func TestCaptureImplicationsAreOneTime(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	c := NewCaptureConversion(types.NewParameterized(types.List, types.Unbounded()), []*types.InferenceVariable{a})
	require.NoError(t, b.Incorporate().CaptureConversion(c))

	// an equality added before the capture is rejected, see TestCapturedWildcardRejectsPriorEquality
	require.NoError(t, b.Incorporate().Equality(a, types.String))
	instantiation, ok := b.Instantiation(a)
	require.True(t, ok)
	assert.Equal(t, types.String, instantiation)
	assert.Len(t, b.CaptureConversions(), 1)
	assert.False(t, b.ContainsFalse())
}
