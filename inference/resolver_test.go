package inference

import (
	"fmt"
	"testing"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncorporateTypeParametersIsIdempotent(t *testing.T) {
	r := NewResolver()
	first, err := r.IncorporateTypeParameters(types.HashMap)
	require.NoError(t, err)
	require.Len(t, first, 2)
	before := r.Bounds().String()

	second, err := r.IncorporateTypeParameters(types.HashMap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, before, r.Bounds().String())
	assert.True(t, r.IsIncorporated(types.HashMap))
	assert.Len(t, r.Bounds().InferenceVariables(), 2)
}

func TestIncorporateTypeParametersIsAllOrNothing(t *testing.T) {
	x := types.NewClass("X")
	x.AddTypeParameter("T",
		types.NewParameterized(types.Comparable, types.String),
		types.NewParameterized(types.Comparable, types.Integer))
	r := NewResolver()
	before := r.Bounds().String()

	for range 2 {
		_, err := r.IncorporateTypeParameters(x)
		require.Error(t, err)
		assert.True(t, inferr.Is(err, inferr.Contradiction), "unexpected error %v", err)
		assert.False(t, r.IsIncorporated(x))
		assert.Empty(t, r.Bounds().InferenceVariables())
		assert.Equal(t, before, r.Bounds().String())
	}

	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	r = NewResolverFor(b)
	err := r.AddUpperBound(a, x)
	require.Error(t, err)
	assert.True(t, inferr.Is(err, inferr.Contradiction), "unexpected error %v", err)
	assert.Empty(t, boundsOf(t, b, a).UpperBounds())
	assert.Len(t, b.InferenceVariables(), 1)
}

func TestDeclaredBoundsBecomeUpperBounds(t *testing.T) {
	r := NewResolver()
	vars, err := r.IncorporateTypeParameters(types.Enum)
	require.NoError(t, err)
	e := vars[types.Enum.TypeParameters()[0]]

	upper := boundsOf(t, r.Bounds(), e).UpperBounds()
	assert.Len(t, upper, 2)
	assert.Contains(t, upper, types.Type(types.NewParameterized(types.Enum, e)))
	assert.Contains(t, upper, types.Type(types.Object))
}

func TestScenarioLowerBoundOfList(t *testing.T) {
	r := NewResolver()
	vars, err := r.IncorporateTypeParameters(types.List)
	require.NoError(t, err)
	e := vars[types.List.TypeParameters()[0]]

	require.NoError(t, r.AddLowerBound(e, types.String))
	result, err := r.Infer(e)
	require.NoError(t, err)
	assert.Equal(t, types.String, result[e])
	assert.NotPanics(t, r.Bounds().AssertConsistent)
}

func TestScenarioCaptureOfLowerBoundedWildcard(t *testing.T) {
	r := NewResolver()
	captured, err := r.CaptureConversion(types.NewParameterized(types.Comparable, types.Super(types.Integer)))
	require.NoError(t, err)
	a, ok := captured.Arguments()[0].(*types.InferenceVariable)
	require.True(t, ok)

	bounds := boundsOf(t, r.Bounds(), a)
	assert.Equal(t, []types.Type{types.Integer}, bounds.LowerBounds())
	assert.Equal(t, []types.Type{types.Object}, bounds.UpperBounds())
	require.NotNil(t, bounds.CaptureConversion())

	result, err := r.Infer(a)
	require.NoError(t, err)
	capture, ok := result[a].(*types.TypeVariableCapture)
	require.True(t, ok, "expected a capture but got %v", result[a])
	assert.Equal(t, []types.Type{types.Integer}, capture.LowerBounds())
	assert.Equal(t, []types.Type{types.Object}, capture.UpperBounds())
	assert.Same(t, types.Comparable.TypeParameters()[0], capture.Parameter)
	assert.Empty(t, r.Bounds().CaptureConversions())
	assert.NotPanics(t, r.Bounds().AssertConsistent)
}

func TestScenarioIndependentVariables(t *testing.T) {
	b := NewBoundSet()
	vars := newVariables(b, "a", "b")
	a, c := vars[0], vars[1]
	require.NoError(t, b.Incorporate().Subtype(types.Integer, a))
	require.NoError(t, b.Incorporate().Subtype(c, types.Number))

	r := NewResolverFor(b)
	result, err := r.Infer(a, c)
	require.NoError(t, err)
	assert.Equal(t, map[*types.InferenceVariable]types.Type{a: types.Integer, c: types.Number}, result)
}

func TestJoinOfLowerBounds(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	require.NoError(t, b.Incorporate().Subtype(types.Integer, a))
	require.NoError(t, b.Incorporate().Subtype(types.Double, a))

	result, err := NewResolverFor(b).Infer(a)
	require.NoError(t, err)
	instantiation := result[a]
	assert.Equal(t, "Number & Comparable<?>", instantiation.String())
	assert.True(t, types.IsAssignable(instantiation, types.Number))
	assert.True(t, types.IsAssignable(instantiation, types.Serializable))
	assert.True(t, types.IsAssignable(instantiation, types.NewParameterized(types.Comparable, types.Unbounded())))
	assert.True(t, types.IsAssignable(types.Integer, instantiation))
	assert.True(t, types.IsAssignable(types.Double, instantiation))
}

func TestMeetOfUpperBounds(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	require.NoError(t, b.Incorporate().Subtype(a, types.Number))
	require.NoError(t, b.Incorporate().Subtype(a, types.Cloneable))

	result, err := NewResolverFor(b).Infer(a)
	require.NoError(t, err)
	assert.Equal(t, "Number & Cloneable", result[a].String())
}

func TestUnboundedVariableIsObject(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	result, err := NewResolverFor(b).Infer(a)
	require.NoError(t, err)
	assert.Equal(t, types.Object, result[a])
}

func TestCyclicUpperBoundsTerminate(t *testing.T) {
	for _, n := range []int{1, 2, 5, 20} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			r := NewResolver()
			vars := make([]*types.InferenceVariable, n)
			for i := range vars {
				vars[i] = types.NewInferenceVariable(fmt.Sprint("a", i))
				r.Bounds().AddInferenceVariable(vars[i])
			}
			for i, v := range vars {
				require.NoError(t, r.AddUpperBound(v, types.NewParameterized(types.List, vars[(i+1)%n])))
			}

			var result map[*types.InferenceVariable]types.Type
			require.NotPanics(t, func() {
				var err error
				result, err = r.Infer(vars...)
				require.NoError(t, err)
			})
			require.Len(t, result, n)
			for i, v := range vars {
				capture, ok := result[v].(*types.TypeVariableCapture)
				require.True(t, ok, "expected a capture for %v but got %v", v, result[v])
				next := types.NewParameterized(types.List, result[vars[(i+1)%n]])
				assert.True(t, types.Equal(next, capture.UpperBounds()[0]), "%v should be bounded by %v", capture.Describe(), next)
			}
			assert.NotPanics(t, r.Bounds().AssertConsistent)
		})
	}
}

func TestEqualVariablesShareCapture(t *testing.T) {
	r := NewResolver()
	vars := []*types.InferenceVariable{types.NewInferenceVariable("a"), types.NewInferenceVariable("b")}
	for _, v := range vars {
		r.Bounds().AddInferenceVariable(v)
	}
	require.NoError(t, r.AddEquality(vars[0], vars[1]))
	require.NoError(t, r.AddUpperBound(vars[0], types.NewParameterized(types.Comparable, vars[1])))

	result, err := r.Infer(vars...)
	require.NoError(t, err)
	assert.Same(t, result[vars[0]], result[vars[1]])
	_, ok := result[vars[0]].(*types.TypeVariableCapture)
	assert.True(t, ok)
}

func TestCaptureBoundedByLaterVariable(t *testing.T) {
	r := NewResolver()
	captured, err := r.CaptureConversion(types.NewParameterized(types.List, types.Unbounded()))
	require.NoError(t, err)
	a, ok := captured.Arguments()[0].(*types.InferenceVariable)
	require.True(t, ok)
	b := types.NewInferenceVariable("b")
	r.Bounds().AddInferenceVariable(b)
	require.NoError(t, r.AddLowerBound(b, types.String))
	comparableOfB := types.NewParameterized(types.Comparable, b)
	require.NoError(t, r.AddUpperBound(a, comparableOfB))

	result, err := r.Infer(a, b)
	require.NoError(t, err)
	assert.Equal(t, types.String, result[b])
	capture, ok := result[a].(*types.TypeVariableCapture)
	require.True(t, ok, "expected a capture but got %v", result[a])
	upper := capture.UpperBounds()
	require.Len(t, upper, 1)
	assert.True(t, types.Equal(comparableOfB, upper[0]), "%v should keep its bound on b", capture.Describe())
	assert.False(t, r.Bounds().ContainsFalse())
	assert.NotPanics(t, r.Bounds().AssertConsistent)
}

func TestUnsatisfiableCaptureIsNotRecorded(t *testing.T) {
	r := NewResolver()
	captured, err := r.CaptureConversion(types.NewParameterized(types.List, types.Unbounded()))
	require.NoError(t, err)
	a, ok := captured.Arguments()[0].(*types.InferenceVariable)
	require.True(t, ok)
	b := types.NewInferenceVariable("b")
	r.Bounds().AddInferenceVariable(b)
	require.NoError(t, r.AddEquality(a, types.NewParameterized(types.List, b)))
	before := r.Bounds().String()

	_, err = r.Infer(a, b)
	require.Error(t, err)
	assert.True(t, inferr.Is(err, inferr.Contradiction), "unexpected error %v", err)
	_, instantiated := r.Bounds().Instantiation(a)
	assert.False(t, instantiated)
	assert.Equal(t, before, r.Bounds().String())
}

func TestIncorporateTypeHierarchy(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.IncorporateTypeHierarchy(types.NewParameterized(types.ArrayList, types.String), types.Collection))

	result, err := r.InferDeclaration(types.Collection)
	require.NoError(t, err)
	assert.Equal(t, types.String, result[types.Collection.TypeParameters()[0]])
	assert.True(t, r.IsIncorporated(types.List))

	resolved := r.ResolveType(types.NewParameterized(types.Iterable, types.List.TypeParameters()[0]))
	assert.Equal(t, "Iterable<String>", resolved.String())
}

func TestIncorporateTypeHierarchyRejectsNonSubclass(t *testing.T) {
	r := NewResolver()
	err := r.IncorporateTypeHierarchy(types.String, types.Number)
	require.Error(t, err)
	assert.Equal(t, inferr.InvalidHierarchy, inferr.CodeOf(err))
	assert.Empty(t, r.Bounds().InferenceVariables())
	assert.False(t, r.Bounds().ContainsFalse())
}

func TestIncorporateParameterizedType(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.IncorporateType(types.NewParameterized(types.Map, types.String, types.Extends(types.Number))))
	require.NoError(t, r.AddLowerBound(types.Map.TypeParameters()[1], types.Integer))

	result, err := r.InferDeclaration(types.Map)
	require.NoError(t, err)
	assert.Equal(t, types.String, result[types.Map.TypeParameters()[0]])
	assert.Equal(t, types.Integer, result[types.Map.TypeParameters()[1]])
}

func TestIncorporateWildcardType(t *testing.T) {
	r := NewResolver()
	v, err := r.IncorporateWildcardType(types.Super(types.Integer))
	require.NoError(t, err)

	result, err := r.Infer(v)
	require.NoError(t, err)
	assert.Equal(t, types.Integer, result[v])
}

func TestGenericMethodOfGenericClass(t *testing.T) {
	box := types.NewClass("Box")
	boxT := box.AddTypeParameter("T")
	method := types.NewMethod(box, "narrow", false)
	methodU := method.AddTypeParameter("U", boxT)

	r := NewResolver()
	vars, err := r.IncorporateTypeParameters(method)
	require.NoError(t, err)
	require.True(t, r.IsIncorporated(box))
	u := vars[methodU]
	tVar, ok := r.InferenceVariable(box, boxT)
	require.True(t, ok)
	assert.Contains(t, boundsOf(t, r.Bounds(), u).UpperBounds(), types.Type(tVar))

	require.NoError(t, r.AddEquality(boxT, types.Integer))
	result, err := r.InferDeclaration(method)
	require.NoError(t, err)
	assert.Equal(t, types.Integer, result[methodU])

	listOfU := types.NewParameterized(types.List, methodU)
	assert.Equal(t, "List<Integer>", r.ResolveTypeIn(method, listOfU).String())
	assert.Equal(t, "List<Integer>", r.ResolveType(listOfU).String())
}

func TestIncorporateInstantiation(t *testing.T) {
	method := types.NewMethod(nil, "identity", true)
	tv := method.AddTypeParameter("T")

	r := NewResolver()
	require.NoError(t, r.IncorporateInstantiation(tv, types.String))
	result, err := r.InferDeclaration(method)
	require.NoError(t, err)
	assert.Equal(t, types.String, result[tv])

	err = r.IncorporateInstantiation(tv, types.Integer)
	require.Error(t, err)
	assert.Equal(t, inferr.Contradiction, inferr.CodeOf(err))
}

func TestResolveTypeLeavesUnknownVariables(t *testing.T) {
	r := NewResolver()
	method := types.NewMethod(nil, "m", true)
	tv := method.AddTypeParameter("T")
	a := types.NewInferenceVariable("a")

	assert.Same(t, tv, r.ResolveType(tv))
	assert.Same(t, a, r.ResolveType(a))
	capture := types.NewTypeVariableCapture("c")
	assert.Same(t, capture, r.ResolveType(capture))
}

func TestValidateDoesNotMutate(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	require.NoError(t, b.Incorporate().Subtype(types.Integer, a))
	r := NewResolverFor(b)
	before := b.String()

	assert.True(t, r.Validate(a))
	assert.Equal(t, before, b.String())
	_, instantiated := b.Instantiation(a)
	assert.False(t, instantiated)

	require.Error(t, r.AddUpperBound(a, types.String))
	assert.False(t, r.Validate(a))
}

func TestInferFailsFastOnFalsehood(t *testing.T) {
	b := NewBoundSet()
	a := newVariables(b, "a")[0]
	require.NoError(t, b.Incorporate().Falsehood(false))

	_, err := NewResolverFor(b).Infer(a)
	require.Error(t, err)
	assert.Equal(t, inferr.Falsehood, inferr.CodeOf(err))
}

func TestInferPanicsOnUnregisteredVariable(t *testing.T) {
	r := NewResolver()
	assert.Panics(t, func() {
		_, _ = r.Infer(types.NewInferenceVariable("stranger"))
	})
}

func TestInferAll(t *testing.T) {
	r := NewResolver()
	require.NoError(t, r.IncorporateType(types.NewParameterized(types.HashMap, types.String, types.Integer)))
	result, err := r.InferAll()
	require.NoError(t, err)
	assert.Len(t, result, 2)
	for _, instantiation := range result {
		assert.True(t, instantiation == types.Type(types.String) || instantiation == types.Type(types.Integer))
	}
}

func TestLooseCompatibilityBoxes(t *testing.T) {
	r := NewResolver()
	method := types.NewMethod(nil, "of", true)
	tv := method.AddTypeParameter("T")
	require.NoError(t, r.AddLooseCompatibility(types.PrimitiveInt, tv))

	result, err := r.InferDeclaration(method)
	require.NoError(t, err)
	assert.Equal(t, types.Integer, result[tv])

	strict := NewResolver()
	err = strict.AddStrictCompatibility(types.PrimitiveInt, tv)
	require.Error(t, err)
	assert.True(t, strict.Bounds().ContainsFalse())
}
