package inference

import (
	"slices"

	"github.com/cottand/jinfer/types"
	"github.com/cottand/jinfer/util"
	"github.com/pkg/errors"
)

// instantiateToCaptures instantiates every variable of set to a fresh type variable
// capture bounded like the variable, JLS 18.4. Variables known to be equal to each
// other share a capture. Capture conversions on the variables are dropped.
// Nothing is recorded when the captures do not satisfy the bounds of their variables.
func (r *Resolver) instantiateToCaptures(set []*types.InferenceVariable) error {
	captures := r.freshCaptures(set)
	var related []*CaptureConversion
	for _, c := range r.bounds.captures {
		if slices.ContainsFunc(c.variables, func(v *types.InferenceVariable) bool { return slices.Contains(set, v) }) {
			related = append(related, c)
		}
	}

	trial := r.bounds.Copy()
	err := trial.atomically(func(in *incorporator) error {
		trial.removeCaptureConversions(related)
		before := recordInstantiations(trial, set, captures)
		for _, v := range set {
			bounds, ok := before[v]
			if !ok {
				continue
			}
			c := captures[v]
			for _, e := range bounds.equalities {
				if err := in.reduce(Equality, c, e); err != nil {
					return err
				}
			}
			for _, upper := range bounds.upperBounds {
				if err := in.reduce(Subtype, c, upper); err != nil {
					return err
				}
			}
			for _, lower := range bounds.lowerBounds {
				if err := in.reduce(Subtype, lower, c); err != nil {
					return err
				}
			}
			if err := in.propagateInstantiation(v, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "cannot instantiate %v to fresh captures", util.JoinString(set, ", "))
	}
	*r.bounds = *trial
	return nil
}

// recordInstantiations sets the instantiation of each uninstantiated variable of set
// without deriving anything from it. It returns the bounds the variables had before.
func recordInstantiations(bounds *BoundSet, set []*types.InferenceVariable, captures map[*types.InferenceVariable]*types.TypeVariableCapture) map[*types.InferenceVariable]*InferenceVariableBounds {
	before := make(map[*types.InferenceVariable]*InferenceVariableBounds, len(set))
	for _, v := range set {
		if _, ok := bounds.Instantiation(v); ok {
			continue
		}
		before[v] = bounds.mustBoundsOn(v)
		c := captures[v]
		bounds.update(v, func(b *InferenceVariableBounds) {
			if !containsType(b.equalities, c) {
				b.equalities = append(b.equalities, c)
			}
			b.instantiation = c
		})
	}
	return before
}

// freshCaptures creates the captures for set. Every variable of set is replaced by its
// capture in the bounds of the group. A capture's upper bound is then the glb of the upper
// bounds of its variables, and its lower bound the lub of the proper lower bounds.
// Bounds still mentioning variables outside set are kept as they are, those variables
// are resolved after the captures.
func (r *Resolver) freshCaptures(set []*types.InferenceVariable) map[*types.InferenceVariable]*types.TypeVariableCapture {
	groups := r.equalityGroups(set)
	captures := make(map[*types.InferenceVariable]*types.TypeVariableCapture, len(set))
	for _, group := range groups {
		c := types.NewTypeVariableCapture(group[0].Name())
		for _, v := range group {
			captures[v] = c
		}
	}
	theta := types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		v, ok := t.(*types.InferenceVariable)
		if !ok {
			return nil, false
		}
		if c, ok := captures[v]; ok {
			return c, true
		}
		return r.bounds.Instantiation(v)
	})

	for _, group := range groups {
		c := captures[group[0]]
		var upper, lower, pending []types.Type
		for _, v := range group {
			bounds := r.bounds.mustBoundsOn(v)
			for _, t := range theta.ResolveAll(bounds.upperBounds) {
				if t != types.Type(c) && !containsType(upper, t) {
					upper = append(upper, t)
				}
			}
			for _, t := range theta.ResolveAll(bounds.lowerBounds) {
				if t == types.Type(c) || containsType(lower, t) {
					continue
				}
				if r.bounds.IsProper(t) {
					lower = append(lower, t)
				} else if !containsType(pending, t) {
					pending = append(pending, t)
				}
			}
			if bounds.capture != nil && c.Wildcard == nil {
				arg, _ := bounds.capture.CapturedArgument(v)
				if w, ok := arg.(*types.Wildcard); ok {
					c.Wildcard = w
					c.Parameter, _ = bounds.capture.CapturedParameter(v)
				}
			}
		}
		var upperBounds, lowerBounds []types.Type
		if len(upper) > 0 {
			upperBounds = intersectionMembers(types.GreatestLowerBound(upper...))
		}
		if len(lower) > 0 {
			lowerBounds = []types.Type{types.LeastUpperBound(lower...)}
		}
		lowerBounds = append(lowerBounds, pending...)
		c.SetBounds(upperBounds, lowerBounds)
		r.logger.Debug("created capture", "capture", c.Describe(), "variables", util.JoinString(group, ", "))
	}
	return captures
}

func intersectionMembers(t types.Type) []types.Type {
	if inter, ok := t.(*types.Intersection); ok {
		return inter.Types()
	}
	if t == types.Type(types.Object) {
		return nil
	}
	return []types.Type{t}
}

// equalityGroups partitions set into groups of variables related by equalities between variables
func (r *Resolver) equalityGroups(set []*types.InferenceVariable) [][]*types.InferenceVariable {
	parent := make(map[*types.InferenceVariable]*types.InferenceVariable, len(set))
	for _, v := range set {
		parent[v] = v
	}
	var find func(v *types.InferenceVariable) *types.InferenceVariable
	find = func(v *types.InferenceVariable) *types.InferenceVariable {
		if parent[v] != v {
			parent[v] = find(parent[v])
		}
		return parent[v]
	}
	for _, v := range set {
		for _, e := range r.bounds.mustBoundsOn(v).equalities {
			other, ok := e.(*types.InferenceVariable)
			if _, inSet := parent[other]; !ok || !inSet {
				continue
			}
			if a, b := find(v), find(other); a != b {
				parent[b] = a
			}
		}
	}
	var groups [][]*types.InferenceVariable
	index := map[*types.InferenceVariable]int{}
	for _, v := range set {
		root := find(v)
		i, ok := index[root]
		if !ok {
			i = len(groups)
			index[root] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], v)
	}
	return groups
}
