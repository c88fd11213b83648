package types

// Substitution replaces types structurally. Identity-bearing types are replaced
// as a whole and never entered, so declared bounds are left untouched.
type Substitution struct {
	mapping func(Type) (Type, bool)
}

func NewSubstitution(mapping func(Type) (Type, bool)) Substitution {
	return Substitution{mapping: mapping}
}

// SubstitutionOf replaces every key of m by its value
func SubstitutionOf[K interface {
	comparable
	Type
}](m map[K]Type) Substitution {
	return NewSubstitution(func(t Type) (Type, bool) {
		k, ok := t.(K)
		if !ok {
			return nil, false
		}
		replacement, ok := m[k]
		return replacement, ok
	})
}

// Where additionally replaces from by to, taking precedence over s
func (s Substitution) Where(from, to Type) Substitution {
	return NewSubstitution(func(t Type) (Type, bool) {
		if Equal(t, from) {
			return to, true
		}
		if s.mapping == nil {
			return nil, false
		}
		return s.mapping(t)
	})
}

// Resolve applies the substitution to t. When nothing was replaced, t itself is returned.
func (s Substitution) Resolve(t Type) Type {
	if t == nil || s.mapping == nil {
		return t
	}
	if replacement, ok := s.mapping(t); ok {
		return replacement
	}
	return t.mapChildren(s.Resolve)
}

func (s Substitution) ResolveAll(ts []Type) []Type {
	resolved := make([]Type, len(ts))
	for i, t := range ts {
		resolved[i] = s.Resolve(t)
	}
	return resolved
}

// TypeArguments maps every type parameter in scope of p to its argument,
// including those of the owner type
func TypeArguments(p *Parameterized) map[*TypeVariable]Type {
	arguments := make(map[*TypeVariable]Type)
	for owner := Type(p); owner != nil; {
		parameterized, ok := owner.(*Parameterized)
		if !ok {
			break
		}
		for i, param := range parameterized.raw.params {
			arguments[param] = parameterized.arguments[i]
		}
		owner = parameterized.owner
	}
	return arguments
}
