package types

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cottand/jinfer/util/hset"
)

type classHasher struct{}

func (classHasher) Hash(c *Class) uint32     { return uint32(c.id) ^ uint32(c.id>>32) }
func (classHasher) Equal(a, b *Class) bool { return a == b }

// LeastUpperBound computes lub(T1..Tn): the most specific type every Ti is assignable to.
// Recursive generic supertypes produce unbounded wildcards rather than infinite types.
func LeastUpperBound(ts ...Type) Type {
	l := lubComputation{inProgress: map[string]bool{}}
	result := l.lub(ts)
	if result == nil {
		return Object
	}
	return result
}

type lubComputation struct {
	inProgress map[string]bool
}

func (l *lubComputation) lub(ts []Type) Type {
	var candidates []Type
	for _, t := range ts {
		if boxed := Box(t); boxed != nil {
			t = boxed
		}
		if !slices.ContainsFunc(candidates, func(c Type) bool { return Equal(c, t) }) {
			candidates = append(candidates, t)
		}
	}
	switch len(candidates) {
	case 0:
		return Object
	case 1:
		return candidates[0]
	}
	// a type every other candidate is assignable to is already the answer
	for _, c := range candidates {
		if !slices.ContainsFunc(candidates, func(other Type) bool { return !IsAssignable(other, c) }) {
			return c
		}
	}
	if components, ok := arrayComponents(candidates); ok {
		if component := l.lub(components); component != nil {
			return NewArray(component)
		}
	}

	key := lubKey(candidates)
	if l.inProgress[key] {
		return nil
	}
	l.inProgress[key] = true
	defer delete(l.inProgress, key)

	erasedCandidates := hset.New[*Class](classHasher{}, ErasedSupertypes(candidates[0])...)
	for _, c := range candidates[1:] {
		erasedCandidates.RetainAll(hset.New[*Class](classHasher{}, ErasedSupertypes(c)...))
	}
	var minimal []*Class
	for c := range erasedCandidates.All() {
		if !anyProperSubclass(erasedCandidates, c) {
			minimal = append(minimal, c)
		}
	}

	members := make([]Type, 0, len(minimal))
	for _, c := range minimal {
		if !c.IsGeneric() {
			members = append(members, c)
			continue
		}
		parameterizations := make([]Type, 0, len(candidates))
		for _, candidate := range candidates {
			parameterizations = append(parameterizations, AsSupertype(candidate, c))
		}
		members = append(members, l.leastContainingParameterization(c, parameterizations))
	}
	return NewIntersection(members...)
}

func arrayComponents(ts []Type) ([]Type, bool) {
	components := make([]Type, 0, len(ts))
	for _, t := range ts {
		a, ok := t.(*Array)
		if !ok || IsPrimitive(a.component) {
			return nil, false
		}
		components = append(components, a.component)
	}
	return components, true
}

func anyProperSubclass(candidates hset.HSet[*Class], c *Class) bool {
	for other := range candidates.All() {
		if other != c && IsSubclass(other, c) {
			return true
		}
	}
	return false
}

func lubKey(ts []Type) string {
	hashes := hashesOf(ts)
	slices.Sort(hashes)
	parts := make([]string, len(hashes))
	for i, h := range hashes {
		parts[i] = strconv.FormatUint(h, 16)
	}
	return strings.Join(parts, ",")
}

// leastContainingParameterization is lcp(G<..>, G<..>, ...). Any raw parameterization makes the result raw.
func (l *lubComputation) leastContainingParameterization(c *Class, parameterizations []Type) Type {
	var result []Type
	for _, p := range parameterizations {
		parameterized, ok := p.(*Parameterized)
		if !ok {
			return c
		}
		if result == nil {
			result = parameterized.Arguments()
			continue
		}
		for i, arg := range parameterized.arguments {
			result[i] = l.leastContainingTypeArgument(result[i], arg)
		}
	}
	return NewParameterized(c, result...)
}

// leastContainingTypeArgument is lcta(U, V)
func (l *lubComputation) leastContainingTypeArgument(u, v Type) Type {
	uw, uIsWildcard := u.(*Wildcard)
	vw, vIsWildcard := v.(*Wildcard)
	switch {
	case !uIsWildcard && !vIsWildcard:
		if Equal(u, v) {
			return u
		}
		return l.extendsLub(u, v)
	case uIsWildcard && vIsWildcard:
		switch {
		case uw.IsUnbounded() || vw.IsUnbounded():
			return Unbounded()
		case uw.HasLowerBound() && vw.HasLowerBound():
			return Super(GreatestLowerBound(uw.LowerBound(), vw.LowerBound()))
		case uw.HasLowerBound() || vw.HasLowerBound():
			return Unbounded()
		default:
			return l.extendsLub(uw.UpperBound(), vw.UpperBound())
		}
	case uIsWildcard:
		return l.leastContainingTypeArgument(v, u)
	}
	// u is a type, v a wildcard
	switch {
	case vw.IsUnbounded():
		return Unbounded()
	case vw.HasLowerBound():
		return Super(GreatestLowerBound(u, vw.LowerBound()))
	default:
		return l.extendsLub(u, vw.UpperBound())
	}
}

func (l *lubComputation) extendsLub(u, v Type) Type {
	bound := l.lub([]Type{u, v})
	if bound == nil || bound == Object {
		return Unbounded()
	}
	return Extends(bound)
}

// GreatestLowerBound computes glb(T1..Tn), the intersection of the Ti without redundant members
func GreatestLowerBound(ts ...Type) Type {
	flattened := NewIntersection(ts...)
	inter, ok := flattened.(*Intersection)
	if !ok {
		return flattened
	}
	members := inter.Types()
	var kept []Type
	for i, t := range members {
		redundant := false
		for j, other := range members {
			if i != j && IsAssignable(other, t) && (!IsAssignable(t, other) || j < i) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, t)
		}
	}
	return NewIntersection(kept...)
}
