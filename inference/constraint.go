package inference

import (
	"fmt"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/pkg/errors"
)

type Kind uint8

const (
	Equality Kind = iota
	Subtype
	Containment
	LooseCompatibility
	StrictCompatibility
)

func (k Kind) String() string {
	switch k {
	case Equality:
		return "="
	case Subtype:
		return "<:"
	case Containment:
		return "<="
	case LooseCompatibility:
		return "→"
	case StrictCompatibility:
		return "→ strict"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ConstraintFormula is an assertion ‹From Kind To› which reduction turns into bounds.
// For Containment, From is the contained type argument and To the containing one.
type ConstraintFormula struct {
	Kind Kind
	From types.Type
	To   types.Type
}

func (f ConstraintFormula) String() string {
	return fmt.Sprintf("‹%v %v %v›", f.From, f.Kind, f.To)
}

// Reduce reduces ‹from kind to› into bounds, see ConstraintFormula.ReduceInto
func Reduce(kind Kind, from, to types.Type, bounds *BoundSet) error {
	return ConstraintFormula{Kind: kind, From: from, To: to}.ReduceInto(bounds)
}

// ReduceInto reduces f and incorporates the resulting bounds, JLS 18.2.
// When f reduces to false, no bound of f is kept and the bound set is marked as
// containing false, so that later inference fails.
func (f ConstraintFormula) ReduceInto(bounds *BoundSet) error {
	if bounds.ContainsFalse() {
		return inferr.New(inferr.NewFalsehood{Bounds: bounds.String()})
	}
	err := bounds.atomically(func(in *incorporator) error {
		return in.reduce(f.Kind, f.From, f.To)
	})
	if err == nil {
		return nil
	}
	if inferr.Is(err, inferr.Contradiction) {
		_ = bounds.Incorporate().Falsehood(false)
	}
	return errors.Wrapf(err, "cannot reduce %v", f)
}

func (in *incorporator) reduce(kind Kind, from, to types.Type) error {
	if err := in.consume(); err != nil {
		return err
	}
	switch kind {
	case Equality:
		return in.reduceEquality(from, to)
	case Subtype:
		return in.reduceSubtype(from, to)
	case Containment:
		return in.reduceContainment(from, to)
	case LooseCompatibility:
		return in.reduceLooseCompatibility(from, to)
	case StrictCompatibility:
		return in.reduceStrictCompatibility(from, to)
	}
	inferr.Fail("unknown constraint kind %v", kind)
	return nil
}

// isProper is stricter than BoundSet.IsProper: a capture bounded in terms of a variable
// of the bound set is reduced structurally, through its bounds
func (in *incorporator) isProper(t types.Type) bool {
	return !types.MentionsThroughCaptures(t, func(nested types.Type) bool {
		v, ok := nested.(*types.InferenceVariable)
		return ok && in.bounds.isRegistered(v)
	})
}

func (in *incorporator) reduceEquality(s, t types.Type) error {
	if types.Equal(s, t) {
		return nil
	}
	_, sVariable := in.variable(s)
	_, tVariable := in.variable(t)
	if sVariable || tVariable {
		return in.equality(s, t)
	}
	if in.isProper(s) && in.isProper(t) {
		return in.contradiction("=", s, t, "")
	}
	switch s := s.(type) {
	case *types.Wildcard:
		t, ok := t.(*types.Wildcard)
		switch {
		case !ok:
		case s.IsUnbounded() && t.IsUnbounded():
			return nil
		case s.HasLowerBound() && t.HasLowerBound():
			return in.reduce(Equality, s.LowerBound(), t.LowerBound())
		case !s.HasLowerBound() && !t.HasLowerBound():
			return in.reduce(Equality, s.UpperBound(), t.UpperBound())
		}
	case *types.Parameterized:
		t, ok := t.(*types.Parameterized)
		if !ok || s.Raw() != t.Raw() {
			break
		}
		if s.Owner() != nil && t.Owner() != nil {
			if err := in.reduce(Equality, s.Owner(), t.Owner()); err != nil {
				return err
			}
		}
		tArgs := t.Arguments()
		for i, sArg := range s.Arguments() {
			if err := in.reduce(Containment, sArg, tArgs[i]); err != nil {
				return err
			}
			if err := in.reduce(Containment, tArgs[i], sArg); err != nil {
				return err
			}
		}
		return nil
	case *types.Array:
		if t, ok := t.(*types.Array); ok {
			return in.reduce(Equality, s.Component(), t.Component())
		}
	case *types.Intersection:
		t, ok := t.(*types.Intersection)
		if !ok || len(s.Types()) != len(t.Types()) {
			break
		}
		tTypes := t.Types()
		for i, member := range s.Types() {
			if err := in.reduce(Equality, member, tTypes[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return in.contradiction("=", s, t, "")
}

func (in *incorporator) reduceSubtype(s, t types.Type) error {
	if types.Equal(s, t) {
		return nil
	}
	if in.isProper(s) && in.isProper(t) {
		if types.IsAssignable(s, t) {
			return nil
		}
		return in.contradiction("<:", s, t, "")
	}
	_, sVariable := in.variable(s)
	_, tVariable := in.variable(t)
	if sVariable || tVariable {
		return in.subtype(s, t)
	}
	if w, ok := s.(*types.Wildcard); ok {
		return in.reduce(Subtype, w.UpperBound(), t)
	}

	switch target := t.(type) {
	case *types.Parameterized:
		super := types.AsSupertype(s, target.Raw())
		if super == nil {
			return in.contradiction("<:", s, t, fmt.Sprintf("%v has no supertype of class %v", s, target.Raw()))
		}
		parameterized, ok := super.(*types.Parameterized)
		if !ok {
			// unchecked conversion
			return nil
		}
		expected := types.TypeArguments(target)
		for param, actual := range types.TypeArguments(parameterized) {
			if container, ok := expected[param]; ok {
				if err := in.reduce(Containment, actual, container); err != nil {
					return err
				}
			}
		}
		return nil
	case *types.Class:
		if types.AsSupertype(s, target) != nil {
			return nil
		}
	case *types.Array:
		if component := arrayComponent(s); component != nil {
			if types.IsPrimitive(component) || types.IsPrimitive(target.Component()) {
				return in.reduce(Equality, component, target.Component())
			}
			return in.reduce(Subtype, component, target.Component())
		}
	case *types.Intersection:
		for _, member := range target.Types() {
			if err := in.reduce(Subtype, s, member); err != nil {
				return err
			}
		}
		return nil
	case *types.TypeVariableCapture:
		if inter, ok := s.(*types.Intersection); ok && containsType(inter.Types(), target) {
			return nil
		}
		if lower := target.LowerBounds(); len(lower) > 0 {
			return in.reduce(Subtype, s, types.NewIntersection(lower...))
		}
	case *types.Wildcard:
		if lower := target.LowerBound(); lower != nil {
			return in.reduce(Subtype, s, lower)
		}
	default:
		if inter, ok := s.(*types.Intersection); ok && containsType(inter.Types(), target) {
			return nil
		}
	}
	return in.contradiction("<:", s, t, "")
}

// arrayComponent is the component type of s if s is an array or bounded by one
func arrayComponent(s types.Type) types.Type {
	switch s := s.(type) {
	case *types.Array:
		return s.Component()
	case *types.Intersection:
		for _, member := range s.Types() {
			if component := arrayComponent(member); component != nil {
				return component
			}
		}
	case *types.TypeVariable, *types.TypeVariableCapture:
		for _, bound := range types.DirectSupertypes(s) {
			if component := arrayComponent(bound); component != nil {
				return component
			}
		}
	}
	return nil
}

// reduceContainment reduces ‹s <= t›: type argument s is contained by type argument t
func (in *incorporator) reduceContainment(s, t types.Type) error {
	tw, ok := t.(*types.Wildcard)
	sw, sIsWildcard := s.(*types.Wildcard)
	if !ok {
		if sIsWildcard {
			return in.contradiction("<=", s, t, "a wildcard is only contained by wildcards")
		}
		return in.reduce(Equality, s, t)
	}
	switch {
	case tw.IsUnbounded():
		return nil
	case tw.HasLowerBound():
		if !sIsWildcard {
			return in.reduce(Subtype, tw.LowerBound(), s)
		}
		if sw.HasLowerBound() {
			return in.reduce(Subtype, tw.LowerBound(), sw.LowerBound())
		}
		return in.contradiction("<=", s, t, "")
	default:
		if !sIsWildcard {
			return in.reduce(Subtype, s, tw.UpperBound())
		}
		if sw.HasLowerBound() {
			return in.reduce(Equality, types.Object, tw.UpperBound())
		}
		return in.reduce(Subtype, sw.UpperBound(), tw.UpperBound())
	}
}

func (in *incorporator) reduceLooseCompatibility(s, t types.Type) error {
	if in.isProper(s) && in.isProper(t) {
		if types.IsLooselyCompatible(s, t) {
			return nil
		}
		return in.contradiction("→", s, t, "")
	}
	if boxed := types.Box(s); boxed != nil {
		return in.reduce(LooseCompatibility, boxed, t)
	}
	if boxed := types.Box(t); boxed != nil {
		return in.reduce(Equality, s, boxed)
	}
	return in.reduce(Subtype, s, t)
}

func (in *incorporator) reduceStrictCompatibility(s, t types.Type) error {
	if in.isProper(s) && in.isProper(t) {
		if types.IsStrictlyCompatible(s, t) {
			return nil
		}
		return in.contradiction("→ strict", s, t, "")
	}
	if types.IsPrimitive(s) || types.IsPrimitive(t) {
		return in.contradiction("→ strict", s, t, "primitives are only strictly compatible with primitives")
	}
	return in.reduce(Subtype, s, t)
}
