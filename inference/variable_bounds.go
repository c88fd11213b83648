package inference

import (
	"slices"

	"github.com/cottand/jinfer/types"
	"github.com/hashicorp/go-set/v3"
)

// InferenceVariableBounds are the bounds on a single inference variable.
// Values are never modified once stored in a BoundSet, so that copies of the
// bound set can share them; every change goes through clone.
type InferenceVariableBounds struct {
	variable      *types.InferenceVariable
	equalities    []types.Type
	upperBounds   []types.Type
	lowerBounds   []types.Type
	capture       *CaptureConversion
	instantiation types.Type
}

func newVariableBounds(v *types.InferenceVariable) *InferenceVariableBounds {
	return &InferenceVariableBounds{variable: v}
}

func (b *InferenceVariableBounds) clone() *InferenceVariableBounds {
	return &InferenceVariableBounds{
		variable:      b.variable,
		equalities:    slices.Clip(b.equalities),
		upperBounds:   slices.Clip(b.upperBounds),
		lowerBounds:   slices.Clip(b.lowerBounds),
		capture:       b.capture,
		instantiation: b.instantiation,
	}
}

func (b *InferenceVariableBounds) InferenceVariable() *types.InferenceVariable { return b.variable }
func (b *InferenceVariableBounds) Equalities() []types.Type                   { return slices.Clone(b.equalities) }
func (b *InferenceVariableBounds) UpperBounds() []types.Type                  { return slices.Clone(b.upperBounds) }
func (b *InferenceVariableBounds) LowerBounds() []types.Type                  { return slices.Clone(b.lowerBounds) }

// CaptureConversion is the capture conversion whose left hand side mentions this variable, if any
func (b *InferenceVariableBounds) CaptureConversion() *CaptureConversion { return b.capture }

// Instantiation is the proper type this variable is equal to, if there is one
func (b *InferenceVariableBounds) Instantiation() (types.Type, bool) {
	return b.instantiation, b.instantiation != nil
}

// mentioned lists every inference variable occurring in the bounds of b, b's own variable included
func (b *InferenceVariableBounds) mentioned() []*types.InferenceVariable {
	vars := []*types.InferenceVariable{b.variable}
	for _, bound := range b.all() {
		for _, v := range types.MentionedInferenceVariables(bound) {
			if !slices.Contains(vars, v) {
				vars = append(vars, v)
			}
		}
	}
	return vars
}

func (b *InferenceVariableBounds) all() []types.Type {
	return slices.Concat(b.equalities, b.upperBounds, b.lowerBounds)
}

// withSubstitution rewrites every bound of b with s, dropping duplicates
func (b *InferenceVariableBounds) withSubstitution(variable *types.InferenceVariable, s types.Substitution, captures map[*CaptureConversion]*CaptureConversion) *InferenceVariableBounds {
	substituted := &InferenceVariableBounds{
		variable:    variable,
		equalities:  dedupe(s.ResolveAll(b.equalities)),
		upperBounds: dedupe(s.ResolveAll(b.upperBounds)),
		lowerBounds: dedupe(s.ResolveAll(b.lowerBounds)),
	}
	if b.capture != nil {
		substituted.capture = captures[b.capture]
	}
	if b.instantiation != nil {
		substituted.instantiation = s.Resolve(b.instantiation)
	}
	substituted.equalities = slices.DeleteFunc(substituted.equalities, func(t types.Type) bool { return t == variable })
	return substituted
}

// dedupe keeps the first of every group of equal types. Hashes only rule out
// duplicates, equal hashes are confirmed with types.Equal
func dedupe(ts []types.Type) []types.Type {
	var result []types.Type
	seen := set.NewHashSet[types.Type, uint64](len(ts))
	for _, t := range ts {
		if seen.Contains(t) && containsType(result, t) {
			continue
		}
		seen.Insert(t)
		result = append(result, t)
	}
	return result
}

func containsType(ts []types.Type, t types.Type) bool {
	return slices.ContainsFunc(ts, func(u types.Type) bool { return types.Equal(t, u) })
}
