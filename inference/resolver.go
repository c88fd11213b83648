package inference

import (
	"log/slog"
	"slices"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/cottand/jinfer/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type declaredVariable = util.Pair[types.GenericDeclaration, *types.TypeVariable]

// Resolver infers the type arguments of generic declarations. It creates inference
// variables for the type parameters of the declarations it is given, records the
// bounds between them in a BoundSet, and resolves them to proper types.
//
// The bound set is shared with whoever else holds it: changes made through the
// resolver are visible to them.
type Resolver struct {
	bounds                *BoundSet
	capturedDeclarations  util.MSet[types.GenericDeclaration]
	capturedTypeVariables map[declaredVariable]*types.InferenceVariable
	logger                *slog.Logger
}

func NewResolver() *Resolver {
	return NewResolverFor(NewBoundSet())
}

// NewResolverFor resolves over an existing bound set
func NewResolverFor(bounds *BoundSet) *Resolver {
	return &Resolver{
		bounds:                bounds,
		capturedDeclarations:  util.NewEmptySet[types.GenericDeclaration](),
		capturedTypeVariables: map[declaredVariable]*types.InferenceVariable{},
		logger:                logger.With("section", "resolver", "session", uuid.NewString()),
	}
}

// Bounds is the bound set the resolver works on
func (r *Resolver) Bounds() *BoundSet {
	return r.bounds
}

// fork returns a resolver over a copy of r's bound set, which r does not see changes to
func (r *Resolver) fork() *Resolver {
	forked := &Resolver{
		bounds:                r.bounds.Copy(),
		capturedDeclarations:  r.capturedDeclarations.Copy(),
		capturedTypeVariables: make(map[declaredVariable]*types.InferenceVariable, len(r.capturedTypeVariables)),
		logger:                r.logger,
	}
	for k, v := range r.capturedTypeVariables {
		forked.capturedTypeVariables[k] = v
	}
	return forked
}

func (r *Resolver) IsIncorporated(declaration types.GenericDeclaration) bool {
	return r.capturedDeclarations.Contains(declaration)
}

// InferenceVariable is the variable created for typeVariable of declaration, if the declaration was incorporated
func (r *Resolver) InferenceVariable(declaration types.GenericDeclaration, typeVariable *types.TypeVariable) (*types.InferenceVariable, bool) {
	v, ok := r.capturedTypeVariables[util.NewPair(declaration, typeVariable)]
	return v, ok
}

// InferenceVariables are the variables of the type parameters of declaration, in declaration order
func (r *Resolver) InferenceVariables(declaration types.GenericDeclaration) []*types.InferenceVariable {
	var vars []*types.InferenceVariable
	for _, param := range declaration.TypeParameters() {
		if v, ok := r.InferenceVariable(declaration, param); ok {
			vars = append(vars, v)
		}
	}
	return vars
}

func (r *Resolver) variablesOf(declaration types.GenericDeclaration) map[*types.TypeVariable]*types.InferenceVariable {
	vars := map[*types.TypeVariable]*types.InferenceVariable{}
	for _, param := range declaration.TypeParameters() {
		if v, ok := r.InferenceVariable(declaration, param); ok {
			vars[param] = v
		}
	}
	return vars
}

// declarationSubstitution maps the type parameters in scope of declaration to their
// inference variables. Parameters of declarations which were never incorporated are left as they are.
func (r *Resolver) declarationSubstitution(declaration types.GenericDeclaration) types.Substitution {
	return types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		tv, ok := t.(*types.TypeVariable)
		if !ok {
			return nil, false
		}
		for d := declaration; d != nil; d = d.EnclosingDeclaration() {
			if v, ok := r.InferenceVariable(d, tv); ok {
				return v, true
			}
		}
		return nil, false
	})
}

// IncorporateTypeParameters creates an inference variable for each type parameter of
// declaration and bounds it by the declared bounds, JLS 18.1.3. Enclosing declarations
// are incorporated first. Incorporating a declaration again returns the existing variables.
// Nothing is recorded, for enclosing declarations either, when a declared bound cannot hold.
func (r *Resolver) IncorporateTypeParameters(declaration types.GenericDeclaration) (map[*types.TypeVariable]*types.InferenceVariable, error) {
	if r.IsIncorporated(declaration) {
		return r.variablesOf(declaration), nil
	}
	forked := r.fork()
	vars, err := forked.incorporateTypeParameters(declaration)
	if err != nil {
		return nil, err
	}
	*r.bounds = *forked.bounds
	r.capturedDeclarations = forked.capturedDeclarations
	r.capturedTypeVariables = forked.capturedTypeVariables
	return vars, nil
}

func (r *Resolver) incorporateTypeParameters(declaration types.GenericDeclaration) (map[*types.TypeVariable]*types.InferenceVariable, error) {
	if r.IsIncorporated(declaration) {
		return r.variablesOf(declaration), nil
	}
	if enclosing := declaration.EnclosingDeclaration(); enclosing != nil {
		if _, err := r.incorporateTypeParameters(enclosing); err != nil {
			return nil, err
		}
	}
	r.capturedDeclarations.Add(declaration)

	params := declaration.TypeParameters()
	vars := make(map[*types.TypeVariable]*types.InferenceVariable, len(params))
	for _, param := range params {
		v := types.NewInferenceVariable(param.Name())
		r.bounds.AddInferenceVariable(v)
		r.capturedTypeVariables[util.NewPair(declaration, param)] = v
		vars[param] = v
	}

	theta := r.declarationSubstitution(declaration)
	for _, param := range params {
		v := vars[param]
		anyProper := false
		for _, bound := range theta.ResolveAll(param.Bounds()) {
			anyProper = anyProper || r.bounds.IsProper(bound)
			if err := r.bounds.Incorporate().Subtype(v, bound); err != nil {
				return nil, errors.Wrapf(err, "cannot incorporate type parameters of %v", declaration)
			}
		}
		if !anyProper {
			if err := r.bounds.Incorporate().Subtype(v, types.Object); err != nil {
				return nil, errors.Wrapf(err, "cannot incorporate type parameters of %v", declaration)
			}
		}
	}
	r.logger.Debug("incorporated type parameters", "declaration", declaration, "variables", len(vars))
	return vars, nil
}

// IncorporateType creates the inference variables t needs: classes get variables for their
// type parameters, which parameterized types additionally bound by their arguments
func (r *Resolver) IncorporateType(t types.Type) error {
	switch t := t.(type) {
	case *types.Class:
		_, err := r.IncorporateTypeParameters(t)
		return err
	case *types.Parameterized:
		_, err := r.IncorporateGenericTypeArguments(t)
		return err
	case *types.Array:
		return r.IncorporateType(t.Component())
	case *types.Intersection:
		for _, member := range t.Types() {
			if err := r.IncorporateType(member); err != nil {
				return err
			}
		}
		return nil
	case *types.Wildcard:
		_, err := r.IncorporateWildcardType(t)
		return err
	}
	return nil
}

// IncorporateGenericTypeArguments incorporates the class of p, and asserts that each
// argument of p is contained by the variable of the corresponding type parameter
func (r *Resolver) IncorporateGenericTypeArguments(p *types.Parameterized) (map[*types.TypeVariable]*types.InferenceVariable, error) {
	if owner := p.Owner(); owner != nil {
		if err := r.IncorporateType(owner); err != nil {
			return nil, err
		}
	}
	vars, err := r.IncorporateTypeParameters(p.Raw())
	if err != nil {
		return nil, err
	}
	args := p.Arguments()
	for i, param := range p.Raw().TypeParameters() {
		arg, err := r.variableize(args[i])
		if err != nil {
			return nil, err
		}
		if err := Reduce(Containment, vars[param], arg, r.bounds); err != nil {
			return nil, errors.Wrapf(err, "cannot incorporate type arguments of %v", p)
		}
	}
	return vars, nil
}

// IncorporateWildcardType creates a variable standing for some type within the bounds of w
func (r *Resolver) IncorporateWildcardType(w *types.Wildcard) (*types.InferenceVariable, error) {
	v := types.NewInferenceVariable("?")
	r.bounds.AddInferenceVariable(v)
	if err := r.bounds.Incorporate().Subtype(v, types.Object); err != nil {
		return nil, err
	}
	for _, lower := range w.LowerBounds() {
		if err := r.AddLowerBound(v, lower); err != nil {
			return nil, err
		}
	}
	for _, upper := range w.UpperBounds() {
		if err := r.AddUpperBound(v, upper); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// CaptureConversion captures the wildcards of p with fresh inference variables, JLS 18.3.2.
// It returns G<α1..αn>, or p itself when p has no wildcard arguments.
func (r *Resolver) CaptureConversion(p *types.Parameterized) (*types.Parameterized, error) {
	if !slices.ContainsFunc(p.Arguments(), func(t types.Type) bool {
		_, ok := t.(*types.Wildcard)
		return ok
	}) {
		return p, nil
	}
	params := p.Raw().TypeParameters()
	vars := make([]*types.InferenceVariable, len(params))
	for i, param := range params {
		vars[i] = types.NewInferenceVariable(param.Name())
	}
	args := make([]types.Type, len(params))
	for i, arg := range p.Arguments() {
		variableized, err := r.variableize(arg)
		if err != nil {
			return nil, err
		}
		args[i] = variableized
	}
	capture := NewCaptureConversion(types.NewOwnedParameterized(p.Owner(), p.Raw(), args...), vars)
	if err := r.bounds.Incorporate().CaptureConversion(capture); err != nil {
		return nil, err
	}
	r.logger.Debug("captured", "type", p, "capture", capture)
	return capture.Captured(), nil
}

// variableize replaces declared type variables with their inference variables, and turns
// a raw generic class into the class applied to the variables of its type parameters.
// Declarations are incorporated as needed, and the first declaration that cannot be is reported.
func (r *Resolver) variableize(t types.Type) (types.Type, error) {
	if raw, ok := t.(*types.Class); ok && raw.IsGeneric() {
		vars, err := r.IncorporateTypeParameters(raw)
		if err != nil {
			return nil, err
		}
		args := make([]types.Type, 0, len(vars))
		for _, param := range raw.TypeParameters() {
			args = append(args, vars[param])
		}
		return types.NewParameterized(raw, args...), nil
	}
	if inter, ok := t.(*types.Intersection); ok {
		members := inter.Types()
		for i, member := range members {
			variableized, err := r.variableize(member)
			if err != nil {
				return nil, err
			}
			members[i] = variableized
		}
		return types.NewIntersection(members...), nil
	}
	var err error
	resolved := types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		tv, ok := t.(*types.TypeVariable)
		if !ok || tv.Declaration() == nil || err != nil {
			return nil, false
		}
		if _, err = r.IncorporateTypeParameters(tv.Declaration()); err != nil {
			return nil, false
		}
		v, ok := r.InferenceVariable(tv.Declaration(), tv)
		return v, ok
	}).Resolve(t)
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (r *Resolver) addConstraint(kind Kind, from, to types.Type) error {
	variableizedFrom, err := r.variableize(from)
	if err != nil {
		return err
	}
	variableizedTo, err := r.variableize(to)
	if err != nil {
		return err
	}
	return Reduce(kind, variableizedFrom, variableizedTo, r.bounds)
}

// AddLowerBound asserts lowerBound <: t
func (r *Resolver) AddLowerBound(t, lowerBound types.Type) error {
	return r.addConstraint(Subtype, lowerBound, t)
}

// AddUpperBound asserts t <: upperBound
func (r *Resolver) AddUpperBound(t, upperBound types.Type) error {
	return r.addConstraint(Subtype, t, upperBound)
}

// AddLooseCompatibility asserts that from is compatible with to in a loose invocation context
func (r *Resolver) AddLooseCompatibility(from, to types.Type) error {
	return r.addConstraint(LooseCompatibility, from, to)
}

// AddStrictCompatibility asserts that from is compatible with to in a strict invocation context
func (r *Resolver) AddStrictCompatibility(from, to types.Type) error {
	return r.addConstraint(StrictCompatibility, from, to)
}

func (r *Resolver) AddEquality(a, b types.Type) error {
	return r.addConstraint(Equality, a, b)
}

// IncorporateInstantiation asserts that typeVariable is instantiated to instantiation
func (r *Resolver) IncorporateInstantiation(typeVariable *types.TypeVariable, instantiation types.Type) error {
	declaration := typeVariable.Declaration()
	if declaration == nil {
		return inferr.New(inferr.NewUnsupported{Feature: "instantiating a type variable without declaration"})
	}
	vars, err := r.IncorporateTypeParameters(declaration)
	if err != nil {
		return err
	}
	variableized, err := r.variableize(instantiation)
	if err != nil {
		return err
	}
	return Reduce(Equality, vars[typeVariable], variableized, r.bounds)
}

// IncorporateTypeHierarchy relates the type arguments of sub to those of its supertype
// class super, walking one supertype edge at a time
func (r *Resolver) IncorporateTypeHierarchy(sub types.Type, super *types.Class) error {
	current := types.RawType(sub)
	if current == nil || !types.IsSubclass(current, super) {
		return inferr.New(inferr.NewInvalidHierarchy{Subtype: sub, Supertype: super})
	}
	if err := r.IncorporateType(sub); err != nil {
		return err
	}
	for current != super {
		var next types.Type
		for _, candidate := range current.DirectSupertypes() {
			if raw := types.RawType(candidate); raw != nil && types.IsSubclass(raw, super) {
				next = candidate
				break
			}
		}
		if next == nil {
			inferr.Fail("no supertype of %v leads to %v", current, super)
		}
		next = r.declarationSubstitution(current).Resolve(next)
		if err := r.IncorporateType(next); err != nil {
			return errors.Wrapf(err, "cannot incorporate hierarchy from %v to %v", sub, super)
		}
		current = types.RawType(next)
	}
	return nil
}

// ResolveType replaces inference variables by their instantiations and type variables of
// incorporated declarations by the instantiations of their variables. Captures are kept.
func (r *Resolver) ResolveType(t types.Type) types.Type {
	return types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		switch t := t.(type) {
		case *types.InferenceVariable:
			if instantiation, ok := r.bounds.Instantiation(t); ok {
				return instantiation, true
			}
			return t, true
		case *types.TypeVariable:
			if t.Declaration() == nil {
				return t, true
			}
			if v, ok := r.InferenceVariable(t.Declaration(), t); ok {
				return r.ResolveType(v), true
			}
			return t, true
		}
		return nil, false
	}).Resolve(t)
}

// ResolveTypeIn resolves t where the type parameters in scope of declaration may appear
func (r *Resolver) ResolveTypeIn(declaration types.GenericDeclaration, t types.Type) types.Type {
	return r.ResolveType(r.declarationSubstitution(declaration).Resolve(t))
}
