package inference

import (
	"maps"
	"slices"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/cottand/jinfer/util"
)

// maxResolutionSteps bounds the number of independent sets a single Infer call resolves
const maxResolutionSteps = 1 << 12

// InferDeclaration infers the type arguments of declaration, incorporating it first if needed
func (r *Resolver) InferDeclaration(declaration types.GenericDeclaration) (map[*types.TypeVariable]types.Type, error) {
	vars, err := r.IncorporateTypeParameters(declaration)
	if err != nil {
		return nil, err
	}
	instantiations, err := r.Infer(slices.Collect(maps.Values(vars))...)
	if err != nil {
		return nil, err
	}
	result := make(map[*types.TypeVariable]types.Type, len(vars))
	for param, v := range vars {
		result[param] = instantiations[v]
	}
	return result, nil
}

// InferAll infers every variable of the bound set
func (r *Resolver) InferAll() (map[*types.InferenceVariable]types.Type, error) {
	return r.Infer(r.bounds.InferenceVariables()...)
}

// Validate reports whether variables can all be instantiated consistently.
// The resolver is left untouched.
func (r *Resolver) Validate(variables ...*types.InferenceVariable) bool {
	_, err := r.fork().Infer(variables...)
	return err == nil
}

// Infer resolves variables, together with every variable they depend on, JLS 18.4.
// Instantiations are final: once found they are recorded in the bound set.
func (r *Resolver) Infer(variables ...*types.InferenceVariable) (map[*types.InferenceVariable]types.Type, error) {
	if r.bounds.ContainsFalse() {
		return nil, inferr.New(inferr.NewFalsehood{Bounds: r.bounds.String()})
	}
	for _, v := range variables {
		if !r.bounds.isRegistered(v) {
			inferr.Fail("cannot infer %v which is not registered in bound set %v", v, r.bounds)
		}
	}
	instantiations := make(map[*types.InferenceVariable]types.Type, len(variables))
	remaining := util.NewSetOf(variables...)
	for step := 0; ; step++ {
		for v := range remaining.All() {
			if instantiation, ok := r.bounds.Instantiation(v); ok {
				instantiations[v] = instantiation
				remaining.Remove(v)
			}
		}
		if remaining.Len() == 0 {
			return instantiations, nil
		}
		if step >= maxResolutionSteps {
			inferr.Fail("resolution did not finish after %d steps, bound set %v", step, r.bounds)
		}

		minimal := r.minimalIndependentSet(remaining)
		if err := r.resolveMinimalIndependentSet(minimal); err != nil {
			return nil, err
		}
		if !slices.ContainsFunc(minimal, func(v *types.InferenceVariable) bool {
			_, ok := r.bounds.Instantiation(v)
			return ok
		}) {
			inferr.Fail("resolving %v made no progress, bound set %v", util.JoinString(minimal, ", "), r.bounds)
		}
	}
}

// dependencies maps each uninstantiated variable to the variables it depends on, itself included
type dependencies map[*types.InferenceVariable]util.MSet[*types.InferenceVariable]

func (d dependencies) add(v, on *types.InferenceVariable) {
	if _, ok := d[v]; !ok {
		d[v] = util.NewEmptySet[*types.InferenceVariable]()
	}
	d[v].Add(on)
}

// close makes the relation transitive
func (d dependencies) close() {
	for changed := true; changed; {
		changed = false
		for _, deps := range d {
			for _, dep := range deps.AsSlice() {
				if transitive, ok := d[dep]; ok && !deps.ContainsAll(transitive) {
					deps.AddSeq(transitive.All())
					changed = true
				}
			}
		}
	}
}

// dependencies computes which uninstantiated variables depend on which, JLS 18.4
func (r *Resolver) dependencies() dependencies {
	all := r.bounds.InferenceVariables()
	byID := make(map[uint64]*types.InferenceVariable, len(all))
	ids := make([]uint64, 0, len(all))
	var instantiatedIDs []uint64
	for _, v := range all {
		byID[v.ID()] = v
		ids = append(ids, v.ID())
		if _, ok := r.bounds.Instantiation(v); ok {
			instantiatedIDs = append(instantiatedIDs, v.ID())
		}
	}
	uninstantiated := util.NewIDSet(ids...).Diff(util.NewIDSet(instantiatedIDs...))
	isUninstantiated := func(v *types.InferenceVariable) bool { return uninstantiated.Contains(v.ID()) }

	deps := dependencies{}
	for _, id := range uninstantiated {
		deps.add(byID[id], byID[id])
	}

	captured := util.NewEmptySet[*types.InferenceVariable]()
	for _, c := range r.bounds.captures {
		mentioned := c.mentioned()
		for _, v := range c.variables {
			captured.Add(v)
			if !isUninstantiated(v) {
				continue
			}
			for _, dep := range mentioned {
				if isUninstantiated(dep) {
					deps.add(v, dep)
				}
			}
		}
	}

	for _, id := range uninstantiated {
		v := byID[id]
		for _, bound := range r.bounds.mustBoundsOn(v).all() {
			for _, other := range types.MentionedInferenceVariables(bound) {
				if other == v || !r.bounds.isRegistered(other) || !isUninstantiated(other) {
					continue
				}
				if captured.Contains(v) {
					deps.add(other, v)
				} else {
					deps.add(v, other)
				}
			}
		}
	}
	deps.close()
	return deps
}

// minimalIndependentSet picks, among the remaining variables, the one with the fewest
// dependencies, and returns it with its dependencies
func (r *Resolver) minimalIndependentSet(remaining util.MSet[*types.InferenceVariable]) []*types.InferenceVariable {
	deps := r.dependencies()
	candidates := remaining.AsSlice()
	sortVariables(candidates)
	var minimal []*types.InferenceVariable
	for _, v := range candidates {
		set, ok := deps[v]
		if !ok {
			continue
		}
		if minimal == nil || set.Len() < len(minimal) {
			minimal = set.AsSlice()
		}
	}
	sortVariables(minimal)
	return minimal
}

// instantiationAttempt is the outcome of trying to instantiate a set of variables on a copy of the bound set
type instantiationAttempt struct {
	bounds        *BoundSet
	contradiction error
}

// resolveMinimalIndependentSet instantiates every variable of set, either directly from
// their proper bounds or, failing that, to fresh captures
func (r *Resolver) resolveMinimalIndependentSet(set []*types.InferenceVariable) error {
	capturing := slices.ContainsFunc(set, func(v *types.InferenceVariable) bool {
		return r.bounds.mustBoundsOn(v).capture != nil
	})
	if !capturing {
		attempt, err := r.tryDirectInstantiation(set)
		if err != nil {
			return err
		}
		if attempt.contradiction == nil {
			*r.bounds = *attempt.bounds
			return nil
		}
		r.logger.Debug("direct instantiation failed, capturing", "variables", util.JoinString(set, ", "), "reason", attempt.contradiction)
	}
	return r.instantiateToCaptures(set)
}

// tryDirectInstantiation instantiates each variable to the lub of its proper lower bounds,
// or the glb of its proper upper bounds, or Object. Contradictions are reported in the attempt,
// other errors are returned.
func (r *Resolver) tryDirectInstantiation(set []*types.InferenceVariable) (instantiationAttempt, error) {
	trial := r.bounds.Copy()
	for _, v := range set {
		if _, ok := trial.Instantiation(v); ok {
			continue
		}
		var candidate types.Type = types.Object
		if lower := trial.ProperLowerBounds(v); len(lower) > 0 {
			candidate = types.LeastUpperBound(lower...)
		} else if upper := trial.ProperUpperBounds(v); len(upper) > 0 {
			candidate = types.GreatestLowerBound(upper...)
		}
		if err := trial.Incorporate().Equality(v, candidate); err != nil {
			if inferr.Is(err, inferr.Contradiction) {
				return instantiationAttempt{contradiction: err}, nil
			}
			return instantiationAttempt{}, err
		}
	}
	return instantiationAttempt{bounds: trial}, nil
}
