package inference

import (
	"fmt"
	"slices"

	"github.com/cottand/jinfer/types"
)

// CaptureConversion is the bound G<α1..αn> = capture(G<A1..An>): each αi stands for
// the captured argument Ai of type parameter Pi
type CaptureConversion struct {
	original  *types.Parameterized
	captured  *types.Parameterized
	variables []*types.InferenceVariable
}

// NewCaptureConversion relates original to the given fresh variables, one per type parameter of its class
func NewCaptureConversion(original *types.Parameterized, variables []*types.InferenceVariable) *CaptureConversion {
	args := make([]types.Type, len(variables))
	for i, v := range variables {
		args[i] = v
	}
	return &CaptureConversion{
		original:  original,
		captured:  types.NewOwnedParameterized(original.Owner(), original.Raw(), args...),
		variables: slices.Clone(variables),
	}
}

// Type is the parameterized type which was captured
func (c *CaptureConversion) Type() *types.Parameterized { return c.original }

// Captured is G<α1..αn>
func (c *CaptureConversion) Captured() *types.Parameterized { return c.captured }

func (c *CaptureConversion) InferenceVariables() []*types.InferenceVariable {
	return slices.Clone(c.variables)
}

func (c *CaptureConversion) indexOf(v *types.InferenceVariable) int {
	return slices.Index(c.variables, v)
}

// CapturedArgument is the argument of the original type that v captures
func (c *CaptureConversion) CapturedArgument(v *types.InferenceVariable) (types.Type, bool) {
	i := c.indexOf(v)
	if i < 0 {
		return nil, false
	}
	return c.original.Arguments()[i], true
}

// CapturedParameter is the type parameter whose argument v captures
func (c *CaptureConversion) CapturedParameter(v *types.InferenceVariable) (*types.TypeVariable, bool) {
	i := c.indexOf(v)
	if i < 0 {
		return nil, false
	}
	return c.original.Raw().TypeParameters()[i], true
}

// Substitution maps the type parameters of the captured class to the capturing variables
func (c *CaptureConversion) Substitution() types.Substitution {
	mapping := make(map[*types.TypeVariable]types.Type, len(c.variables))
	for i, param := range c.original.Raw().TypeParameters() {
		mapping[param] = c.variables[i]
	}
	return types.SubstitutionOf(mapping)
}

// mentioned lists the variables on both sides of the capture
func (c *CaptureConversion) mentioned() []*types.InferenceVariable {
	vars := slices.Clone(c.variables)
	for _, v := range types.MentionedInferenceVariables(c.original) {
		if !slices.Contains(vars, v) {
			vars = append(vars, v)
		}
	}
	return vars
}

func (c *CaptureConversion) WithInferenceVariableSubstitution(mapping map[*types.InferenceVariable]*types.InferenceVariable) *CaptureConversion {
	substitution := types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		v, ok := t.(*types.InferenceVariable)
		if !ok {
			return nil, false
		}
		replacement, ok := mapping[v]
		return replacement, ok
	})
	variables := make([]*types.InferenceVariable, len(c.variables))
	changed := false
	for i, v := range c.variables {
		variables[i] = v
		if replacement, ok := mapping[v]; ok {
			variables[i] = replacement
			changed = true
		}
	}
	original := substitution.Resolve(c.original).(*types.Parameterized)
	if !changed && original == c.original {
		return c
	}
	return NewCaptureConversion(original, variables)
}

func (c *CaptureConversion) String() string {
	return fmt.Sprintf("%v = capture(%v)", c.captured, c.original)
}

// captureConversion registers c and asserts the bounds it implies, JLS 18.3.2
func (in *incorporator) captureConversion(c *CaptureConversion) error {
	b := in.bounds
	if slices.Contains(b.captures, c) {
		return nil
	}
	b.captures = append(slices.Clip(b.captures), c)

	existing := make(map[*types.InferenceVariable]*InferenceVariableBounds, len(c.variables))
	for _, v := range c.variables {
		existing[v] = b.AddInferenceVariable(v)
		b.update(v, func(bounds *InferenceVariableBounds) { bounds.capture = c })
	}

	theta := c.Substitution()
	params := c.original.Raw().TypeParameters()
	args := c.original.Arguments()
	for i, v := range c.variables {
		declared := theta.ResolveAll(params[i].Bounds())
		anyProper := false
		for _, bound := range declared {
			anyProper = anyProper || b.IsProper(bound)
			if err := in.subtype(v, bound); err != nil {
				return err
			}
		}
		if !anyProper {
			if err := in.subtype(v, types.Object); err != nil {
				return err
			}
		}

		wildcard, ok := args[i].(*types.Wildcard)
		if !ok {
			if err := in.equality(v, args[i]); err != nil {
				return err
			}
			continue
		}
		if err := in.capturedBounds(existing[v], wildcard, types.NewIntersection(declared...)); err != nil {
			return err
		}
		if lower := wildcard.LowerBound(); lower != nil {
			if err := in.subtype(lower, v); err != nil {
				return err
			}
		}
		for _, upper := range wildcard.UpperBounds() {
			if err := in.subtype(v, upper); err != nil {
				return err
			}
		}
	}
	return nil
}

// capturedBounds derives the implications of the bounds v had before being captured from wildcard.
// declared is θ(B), the declared bound of the captured parameter.
func (in *incorporator) capturedBounds(before *InferenceVariableBounds, wildcard *types.Wildcard, declared types.Type) error {
	v := before.variable
	isVariable := func(t types.Type) bool {
		_, ok := in.variable(t)
		return ok
	}
	for _, r := range before.equalities {
		if !isVariable(r) {
			return in.contradiction("=", v, r, fmt.Sprintf("%v captures wildcard %v", v, wildcard))
		}
	}
	for _, r := range before.upperBounds {
		if isVariable(r) {
			continue
		}
		var err error
		switch {
		case wildcard.HasLowerBound() || wildcard.IsUnbounded():
			err = in.reduce(Subtype, declared, r)
		case declared == types.Object:
			err = in.reduce(Subtype, wildcard.UpperBound(), r)
		case wildcard.UpperBound() == types.Object:
			err = in.reduce(Subtype, declared, r)
		}
		if err != nil {
			return err
		}
	}
	for _, r := range before.lowerBounds {
		if isVariable(r) {
			continue
		}
		lower := wildcard.LowerBound()
		if lower == nil {
			return in.contradiction("<:", r, v, fmt.Sprintf("%v captures wildcard %v without a lower bound", v, wildcard))
		}
		if err := in.reduce(Subtype, r, lower); err != nil {
			return err
		}
	}
	return nil
}
