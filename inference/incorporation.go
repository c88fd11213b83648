package inference

import (
	"fmt"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/pkg/errors"
)

// incorporationFuel bounds the number of bounds and formulas a single incorporation may process
var incorporationFuel = 1 << 14

// IncorporationTarget adds bounds to a BoundSet, together with everything they imply.
// Every call either succeeds or leaves the bound set as it was.
type IncorporationTarget struct {
	bounds *BoundSet
}

// Equality asserts a = b. Nothing is recorded when neither side is a variable of the bound set.
func (t IncorporationTarget) Equality(a, b types.Type) error {
	if types.Equal(a, b) {
		return nil
	}
	err := t.bounds.atomically(func(in *incorporator) error {
		return in.equality(a, b)
	})
	return errors.Wrapf(err, "cannot add equality bound between '%v' and '%v' to bound set %v", a, b, t.bounds)
}

// Subtype asserts sub <: super
func (t IncorporationTarget) Subtype(sub, super types.Type) error {
	if types.Equal(sub, super) {
		return nil
	}
	err := t.bounds.atomically(func(in *incorporator) error {
		return in.subtype(sub, super)
	})
	return errors.Wrapf(err, "cannot add subtype bound between '%v' and '%v' to bound set %v", sub, super, t.bounds)
}

func (t IncorporationTarget) CaptureConversion(c *CaptureConversion) error {
	err := t.bounds.atomically(func(in *incorporator) error {
		return in.captureConversion(c)
	})
	return errors.Wrapf(err, "cannot add capture conversion %v to bound set %v", c, t.bounds)
}

// Falsehood marks the bound set as unsatisfiable for good. When throwing,
// a Falsehood error is returned as well.
func (t IncorporationTarget) Falsehood(throwing bool) error {
	t.bounds.valid = false
	if throwing {
		return inferr.New(inferr.NewFalsehood{Bounds: t.bounds.String()})
	}
	return nil
}

// incorporator adds bounds to a bound set and derives their consequences, JLS 18.3.1.
// It does not roll back on failure, see BoundSet.atomically.
type incorporator struct {
	bounds *BoundSet
	fuel   int
	budget int
}

func newIncorporator(bounds *BoundSet) *incorporator {
	return &incorporator{bounds: bounds, fuel: incorporationFuel, budget: incorporationFuel}
}

func (in *incorporator) consume() error {
	in.fuel--
	if in.fuel < 0 {
		return inferr.New(inferr.NewExhausted{Steps: in.budget})
	}
	return nil
}

// variable returns t as an inference variable if it is one registered in the bound set
func (in *incorporator) variable(t types.Type) (*types.InferenceVariable, bool) {
	v, ok := t.(*types.InferenceVariable)
	return v, ok && in.bounds.isRegistered(v)
}

func (in *incorporator) contradiction(relation string, first, second types.Type, reason string) error {
	return inferr.New(inferr.NewContradiction{
		Relation: relation,
		First:    first,
		Second:   second,
		Reason:   reason,
	})
}

func (in *incorporator) equality(a, b types.Type) error {
	if types.Equal(a, b) {
		return nil
	}
	if v, ok := in.variable(a); ok {
		if err := in.addEquality(v, b); err != nil {
			return err
		}
	}
	if v, ok := in.variable(b); ok {
		if err := in.addEquality(v, a); err != nil {
			return err
		}
	}
	return nil
}

func (in *incorporator) subtype(sub, super types.Type) error {
	if types.Equal(sub, super) {
		return nil
	}
	if v, ok := in.variable(sub); ok {
		if err := in.addUpperBound(v, super); err != nil {
			return err
		}
	}
	if v, ok := in.variable(super); ok {
		if err := in.addLowerBound(v, sub); err != nil {
			return err
		}
	}
	return nil
}

func (in *incorporator) addEquality(v *types.InferenceVariable, t types.Type) error {
	if err := in.consume(); err != nil {
		return err
	}
	before := in.bounds.mustBoundsOn(v)
	if t == types.Type(v) || containsType(before.equalities, t) {
		return nil
	}
	proper := in.bounds.IsProper(t)
	if proper && before.instantiation != nil && !types.Equal(before.instantiation, t) {
		return in.contradiction("=", before.instantiation, t, fmt.Sprintf("%v is already instantiated to %v", v, before.instantiation))
	}
	in.bounds.update(v, func(bounds *InferenceVariableBounds) {
		bounds.equalities = append(bounds.equalities, t)
		if proper && bounds.instantiation == nil {
			bounds.instantiation = t
		}
	})
	logger.Debug("added equality", "variable", v, "type", t)

	for _, e := range before.equalities {
		if err := in.reduce(Equality, t, e); err != nil {
			return err
		}
	}
	for _, upper := range before.upperBounds {
		if err := in.reduce(Subtype, t, upper); err != nil {
			return err
		}
	}
	for _, lower := range before.lowerBounds {
		if err := in.reduce(Subtype, lower, t); err != nil {
			return err
		}
	}
	if proper && before.instantiation == nil {
		return in.propagateInstantiation(v, t)
	}
	return nil
}

func (in *incorporator) addUpperBound(v *types.InferenceVariable, t types.Type) error {
	if err := in.consume(); err != nil {
		return err
	}
	before := in.bounds.mustBoundsOn(v)
	if containsType(before.upperBounds, t) {
		return nil
	}
	in.bounds.update(v, func(bounds *InferenceVariableBounds) {
		bounds.upperBounds = append(bounds.upperBounds, t)
	})
	logger.Debug("added upper bound", "variable", v, "type", t)

	for _, e := range before.equalities {
		if err := in.reduce(Subtype, e, t); err != nil {
			return err
		}
	}
	for _, lower := range before.lowerBounds {
		if err := in.reduce(Subtype, lower, t); err != nil {
			return err
		}
	}
	for _, upper := range before.upperBounds {
		if err := in.commonSupertypeArguments(upper, t); err != nil {
			return err
		}
	}
	return nil
}

func (in *incorporator) addLowerBound(v *types.InferenceVariable, t types.Type) error {
	if err := in.consume(); err != nil {
		return err
	}
	before := in.bounds.mustBoundsOn(v)
	if containsType(before.lowerBounds, t) {
		return nil
	}
	in.bounds.update(v, func(bounds *InferenceVariableBounds) {
		bounds.lowerBounds = append(bounds.lowerBounds, t)
	})
	logger.Debug("added lower bound", "variable", v, "type", t)

	for _, e := range before.equalities {
		if err := in.reduce(Subtype, t, e); err != nil {
			return err
		}
	}
	for _, upper := range before.upperBounds {
		if err := in.reduce(Subtype, t, upper); err != nil {
			return err
		}
	}
	return nil
}

// commonSupertypeArguments handles α <: S and α <: T: when S and T have supertypes
// G<S1..Sn> and G<T1..Tn>, every pair of non wildcard arguments is equal
func (in *incorporator) commonSupertypeArguments(s, t types.Type) error {
	sRaw, tRaw := types.RawType(s), types.RawType(t)
	if sRaw == nil || tRaw == nil {
		return nil
	}
	for _, g := range types.ErasedSupertypes(sRaw) {
		if !g.IsGeneric() || !types.IsSubclass(tRaw, g) {
			continue
		}
		sSuper, sOk := types.AsSupertype(s, g).(*types.Parameterized)
		tSuper, tOk := types.AsSupertype(t, g).(*types.Parameterized)
		if !sOk || !tOk {
			continue
		}
		tArgs := tSuper.Arguments()
		for i, sArg := range sSuper.Arguments() {
			_, sWildcard := sArg.(*types.Wildcard)
			_, tWildcard := tArgs[i].(*types.Wildcard)
			if sWildcard || tWildcard {
				continue
			}
			if err := in.reduce(Equality, sArg, tArgs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// propagateInstantiation replaces v by its instantiation u in the bounds of every other
// variable, asserting the resulting bounds
func (in *incorporator) propagateInstantiation(v *types.InferenceVariable, u types.Type) error {
	substitution := types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		if t == types.Type(v) {
			return u, true
		}
		return nil, false
	})
	mentionsV := func(t types.Type) bool {
		return types.Mentions(t, func(nested types.Type) bool { return nested == types.Type(v) })
	}
	for _, w := range in.bounds.InferenceVariables() {
		if w == v {
			continue
		}
		bounds := in.bounds.mustBoundsOn(w)
		for _, e := range bounds.equalities {
			if mentionsV(e) {
				if err := in.addEquality(w, substitution.Resolve(e)); err != nil {
					return err
				}
			}
		}
		for _, upper := range bounds.upperBounds {
			if mentionsV(upper) {
				if err := in.addUpperBound(w, substitution.Resolve(upper)); err != nil {
					return err
				}
			}
		}
		for _, lower := range bounds.lowerBounds {
			if mentionsV(lower) {
				if err := in.addLowerBound(w, substitution.Resolve(lower)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
