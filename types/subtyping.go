package types

import (
	"slices"
)

// IsSubclass reports whether sub is sup or inherits from it, ignoring type arguments.
// Every reference class is a subclass of Object.
func IsSubclass(sub, sup *Class) bool {
	if sub == sup {
		return true
	}
	if sub.IsPrimitive() || sup.IsPrimitive() {
		return false
	}
	if sup == Object {
		return true
	}
	seen := map[*Class]bool{}
	pending := []*Class{sub}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		if current == sup {
			return true
		}
		if seen[current] {
			continue
		}
		seen[current] = true
		for _, super := range current.DirectSupertypes() {
			if raw := RawType(super); raw != nil {
				pending = append(pending, raw)
			}
		}
	}
	return false
}

// DirectSupertypes are the immediate supertypes of t with the type arguments of t substituted in.
// Raw generic classes have erased supertypes.
func DirectSupertypes(t Type) []Type {
	switch t := t.(type) {
	case *Class:
		if t.IsPrimitive() {
			return nil
		}
		supertypes := t.DirectSupertypes()
		if !t.IsGeneric() {
			return supertypes
		}
		erased := make([]Type, 0, len(supertypes))
		for _, super := range supertypes {
			erased = append(erased, Erasure(super))
		}
		return erased
	case *Parameterized:
		substitution := SubstitutionOf(wildcardUpperBounds(TypeArguments(t)))
		return substitution.ResolveAll(t.raw.DirectSupertypes())
	case *Array:
		return []Type{Object, Cloneable, Serializable}
	case *Intersection:
		return t.Types()
	case *TypeVariable:
		if len(t.bounds) == 0 {
			return []Type{Object}
		}
		return t.Bounds()
	case *TypeVariableCapture:
		return t.UpperBounds()
	case *Wildcard:
		if len(t.upperBounds) == 0 {
			return []Type{Object}
		}
		return t.UpperBounds()
	case *InferenceVariable:
		return []Type{Object}
	}
	return nil
}

// wildcardUpperBounds approximates capture conversion for the purpose of walking
// supertypes: a wildcard argument stands for its upper bound
func wildcardUpperBounds(arguments map[*TypeVariable]Type) map[*TypeVariable]Type {
	for param, arg := range arguments {
		if w, ok := arg.(*Wildcard); ok {
			arguments[param] = approximateWildcard(w, param)
		}
	}
	return arguments
}

func approximateWildcard(w *Wildcard, param *TypeVariable) Type {
	if w.HasUpperBound() {
		return w
	}
	if len(param.bounds) > 0 && !slices.ContainsFunc(param.bounds, func(b Type) bool {
		return Mentions(b, func(nested Type) bool { _, ok := nested.(*TypeVariable); return ok })
	}) {
		return Extends(param.bounds...)
	}
	return w
}

// Erasure maps parameterized types to their raw class and variables to the erasure of their first bound
func Erasure(t Type) Type {
	switch t := t.(type) {
	case *Parameterized:
		return t.raw
	case *Array:
		return NewArray(Erasure(t.component))
	case *TypeVariable:
		if len(t.bounds) == 0 {
			return Object
		}
		return Erasure(t.bounds[0])
	case *TypeVariableCapture:
		return Erasure(t.UpperBounds()[0])
	case *Wildcard:
		if len(t.upperBounds) == 0 {
			return Object
		}
		return Erasure(t.upperBounds[0])
	case *Intersection:
		return Erasure(t.types[0])
	}
	return t
}

// ErasedSupertypes lists the raw class of every supertype of t, t included, in breadth first order
func ErasedSupertypes(t Type) []*Class {
	var result []*Class
	seen := map[*Class]bool{}
	pending := []Type{t}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		if raw := RawType(current); raw != nil {
			if seen[raw] {
				continue
			}
			seen[raw] = true
			result = append(result, raw)
			pending = append(pending, raw.DirectSupertypes()...)
			continue
		}
		pending = append(pending, DirectSupertypes(current)...)
	}
	if !seen[Object] && !IsPrimitive(t) {
		result = append(result, Object)
	}
	return result
}

// AsSupertype finds the supertype of t whose class is target, with type arguments substituted.
// It returns the raw target when the path goes through a raw type, and nil when
// target is not a supertype of t.
func AsSupertype(t Type, target *Class) Type {
	seen := map[Type]bool{}
	var search func(t Type) Type
	search = func(t Type) Type {
		if raw := RawType(t); raw == target {
			return t
		}
		if seen[t] {
			return nil
		}
		seen[t] = true
		for _, super := range DirectSupertypes(t) {
			if found := search(super); found != nil {
				return found
			}
		}
		return nil
	}
	if target == Object && !IsPrimitive(t) {
		return Object
	}
	return search(t)
}

// IsAssignable reports whether a value of type from can be used where to is expected,
// allowing unchecked conversion from raw types and primitive widening.
// Inference variables are treated as opaque types equal only to themselves.
func IsAssignable(from, to Type) bool {
	if Equal(from, to) {
		return true
	}
	if fromPrimitive, ok := from.(*Class); ok && fromPrimitive.IsPrimitive() {
		toPrimitive, ok := to.(*Class)
		return ok && isPrimitiveWidening(fromPrimitive, toPrimitive)
	}
	if IsPrimitive(to) {
		return false
	}
	if to == Object {
		return true
	}

	switch target := to.(type) {
	case *Intersection:
		for _, member := range target.types {
			if !IsAssignable(from, member) {
				return false
			}
		}
		return true
	case *Wildcard:
		if lower := target.LowerBound(); lower != nil {
			return IsAssignable(from, lower)
		}
		return false
	case *TypeVariableCapture:
		if slices.ContainsFunc(target.lowerBounds, func(lower Type) bool { return IsAssignable(from, lower) }) {
			return true
		}
	}

	switch source := from.(type) {
	case *Intersection:
		return slices.ContainsFunc(source.types, func(member Type) bool { return IsAssignable(member, to) })
	case *Wildcard:
		return IsAssignable(source.UpperBound(), to)
	case *TypeVariable, *TypeVariableCapture:
		return slices.ContainsFunc(DirectSupertypes(source), func(bound Type) bool { return IsAssignable(bound, to) })
	case *Array:
		if target, ok := to.(*Array); ok {
			if IsPrimitive(source.component) || IsPrimitive(target.component) {
				return Equal(source.component, target.component)
			}
			return IsAssignable(source.component, target.component)
		}
		return to == Cloneable || to == Serializable
	case *InferenceVariable:
		return false
	}

	switch target := to.(type) {
	case *Class:
		raw := RawType(from)
		return raw != nil && IsSubclass(raw, target)
	case *Parameterized:
		super := AsSupertype(from, target.raw)
		if super == nil {
			return false
		}
		parameterized, ok := super.(*Parameterized)
		if !ok {
			// unchecked conversion
			return true
		}
		expected := TypeArguments(target)
		for param, actual := range TypeArguments(parameterized) {
			if bound, ok := expected[param]; ok && !Contains(bound, actual) {
				return false
			}
		}
		return true
	}
	return false
}

// Contains reports whether the type argument contained is within container, as in T <= S
func Contains(container, contained Type) bool {
	w, ok := container.(*Wildcard)
	if !ok {
		return Equal(container, contained)
	}
	inner, innerIsWildcard := contained.(*Wildcard)
	switch {
	case w.IsUnbounded():
		return true
	case w.HasLowerBound():
		if !innerIsWildcard {
			return IsAssignable(w.LowerBound(), contained)
		}
		return inner.HasLowerBound() && IsAssignable(w.LowerBound(), inner.LowerBound())
	default:
		if !innerIsWildcard {
			return IsAssignable(contained, w.UpperBound())
		}
		if inner.HasLowerBound() {
			return IsAssignable(Object, w.UpperBound())
		}
		return IsAssignable(inner.UpperBound(), w.UpperBound())
	}
}

// IsStrictlyCompatible is assignability without boxing
func IsStrictlyCompatible(from, to Type) bool {
	return IsAssignable(from, to)
}

// IsLooselyCompatible additionally allows boxing and unboxing conversions
func IsLooselyCompatible(from, to Type) bool {
	if IsStrictlyCompatible(from, to) {
		return true
	}
	if boxed := Box(from); boxed != nil {
		return IsAssignable(boxed, to)
	}
	if IsPrimitive(to) {
		if unboxed := Unbox(from); unboxed != nil {
			return IsAssignable(unboxed, to)
		}
		for _, super := range ErasedSupertypes(from) {
			if unboxed := Unbox(super); unboxed != nil {
				return IsAssignable(unboxed, to)
			}
		}
	}
	return false
}
