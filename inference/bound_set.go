package inference

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/cottand/jinfer/util"
	"github.com/pkg/errors"
)

var (
	_ util.DeepCopyable[*BoundSet] = (*BoundSet)(nil)
	_ fmt.Stringer                 = (*BoundSet)(nil)
)

type variableHasher struct{}

func (variableHasher) Hash(v *types.InferenceVariable) uint32 {
	return uint32(v.ID()) ^ uint32(v.ID()>>32)
}
func (variableHasher) Equal(a, b *types.InferenceVariable) bool { return a == b }

// BoundSet is a set of bounds over inference variables, together with the capture
// conversions relating them. Copies are cheap: bounds are stored in a persistent map
// and only the per-variable entries that change are replaced.
//
// A BoundSet is not safe for concurrent use.
type BoundSet struct {
	bounds   *immutable.Map[*types.InferenceVariable, *InferenceVariableBounds]
	captures []*CaptureConversion
	valid    bool
}

func NewBoundSet() *BoundSet {
	return &BoundSet{
		bounds: immutable.NewMap[*types.InferenceVariable, *InferenceVariableBounds](variableHasher{}),
		valid:  true,
	}
}

// AddInferenceVariable registers v with no bounds. Registering a variable twice returns its existing bounds.
func (b *BoundSet) AddInferenceVariable(v *types.InferenceVariable) *InferenceVariableBounds {
	if existing, ok := b.bounds.Get(v); ok {
		return existing
	}
	bounds := newVariableBounds(v)
	b.bounds = b.bounds.Set(v, bounds)
	return bounds
}

func (b *BoundSet) isRegistered(v *types.InferenceVariable) bool {
	_, ok := b.bounds.Get(v)
	return ok
}

// InferenceVariables lists the registered variables in creation order
func (b *BoundSet) InferenceVariables() []*types.InferenceVariable {
	vars := make([]*types.InferenceVariable, 0, b.bounds.Len())
	itr := b.bounds.Iterator()
	for !itr.Done() {
		v, _, _ := itr.Next()
		vars = append(vars, v)
	}
	sortVariables(vars)
	return vars
}

func sortVariables(vars []*types.InferenceVariable) {
	slices.SortFunc(vars, func(a, b *types.InferenceVariable) int { return cmp.Compare(a.ID(), b.ID()) })
}

// BoundsOn returns the bounds of v, if v is registered
func (b *BoundSet) BoundsOn(v *types.InferenceVariable) (*InferenceVariableBounds, bool) {
	return b.bounds.Get(v)
}

func (b *BoundSet) mustBoundsOn(v *types.InferenceVariable) *InferenceVariableBounds {
	bounds, ok := b.bounds.Get(v)
	if !ok {
		inferr.Fail("inference variable %v is not registered in bound set %v", v, b)
	}
	return bounds
}

func (b *BoundSet) update(v *types.InferenceVariable, f func(bounds *InferenceVariableBounds)) {
	updated := b.mustBoundsOn(v).clone()
	f(updated)
	b.bounds = b.bounds.Set(v, updated)
}

func (b *BoundSet) CaptureConversions() []*CaptureConversion {
	return slices.Clone(b.captures)
}

// ContainsFalse reports whether the bound set was found to be unsatisfiable.
// Once true it stays true.
func (b *BoundSet) ContainsFalse() bool {
	return !b.valid
}

// IsProper reports whether t mentions no inference variable registered in b.
// Unregistered inference variables behave like any other proper type.
func (b *BoundSet) IsProper(t types.Type) bool {
	return !types.Mentions(t, func(nested types.Type) bool {
		v, ok := nested.(*types.InferenceVariable)
		return ok && b.isRegistered(v)
	})
}

func (b *BoundSet) Instantiation(v *types.InferenceVariable) (types.Type, bool) {
	bounds, ok := b.bounds.Get(v)
	if !ok {
		return nil, false
	}
	return bounds.Instantiation()
}

func (b *BoundSet) InstantiatedVariables() []*types.InferenceVariable {
	return slices.DeleteFunc(b.InferenceVariables(), func(v *types.InferenceVariable) bool {
		_, ok := b.Instantiation(v)
		return !ok
	})
}

func (b *BoundSet) ProperUpperBounds(v *types.InferenceVariable) []types.Type {
	return slices.DeleteFunc(b.mustBoundsOn(v).UpperBounds(), func(t types.Type) bool { return !b.IsProper(t) })
}

func (b *BoundSet) ProperLowerBounds(v *types.InferenceVariable) []types.Type {
	return slices.DeleteFunc(b.mustBoundsOn(v).LowerBounds(), func(t types.Type) bool { return !b.IsProper(t) })
}

// Incorporate returns the target through which new bounds are added to b
func (b *BoundSet) Incorporate() IncorporationTarget {
	return IncorporationTarget{bounds: b}
}

// atomically runs f against b, restoring b to its prior state when f fails
func (b *BoundSet) atomically(f func(in *incorporator) error) error {
	if !b.valid {
		return inferr.New(inferr.NewFalsehood{Bounds: b.String()})
	}
	saved := *b
	if err := f(newIncorporator(b)); err != nil {
		*b = saved
		return err
	}
	return nil
}

// Copy returns a bound set with the same bounds and variables which can be modified independently of b
func (b *BoundSet) Copy() *BoundSet {
	return &BoundSet{
		bounds:   b.bounds,
		captures: slices.Clip(b.captures),
		valid:    b.valid,
	}
}

// DeepCopy is like Copy, but every inference variable is replaced by a fresh one
func (b *BoundSet) DeepCopy() *BoundSet {
	copied, _ := b.DeepCopyWith(nil)
	return copied
}

// DeepCopyWith replaces every inference variable with the one in mapping, or with a
// fresh one when mapping has none. It returns the copy and the complete mapping used.
func (b *BoundSet) DeepCopyWith(mapping map[*types.InferenceVariable]*types.InferenceVariable) (*BoundSet, map[*types.InferenceVariable]*types.InferenceVariable) {
	complete := make(map[*types.InferenceVariable]*types.InferenceVariable, b.bounds.Len())
	for _, v := range b.InferenceVariables() {
		if replacement, ok := mapping[v]; ok {
			complete[v] = replacement
		} else {
			complete[v] = types.NewInferenceVariable(v.Name())
		}
	}
	return b.WithInferenceVariableSubstitution(complete), complete
}

// WithInferenceVariableSubstitution returns a copy of b where every occurrence of a
// variable in mapping, in every bound and every capture conversion, is renamed.
// Variables mapped to the same replacement have their bounds merged.
func (b *BoundSet) WithInferenceVariableSubstitution(mapping map[*types.InferenceVariable]*types.InferenceVariable) *BoundSet {
	substitution := types.NewSubstitution(func(t types.Type) (types.Type, bool) {
		v, ok := t.(*types.InferenceVariable)
		if !ok {
			return nil, false
		}
		replacement, ok := mapping[v]
		return replacement, ok
	})
	captures := make(map[*CaptureConversion]*CaptureConversion, len(b.captures))
	substituted := NewBoundSet()
	substituted.valid = b.valid
	for _, c := range b.captures {
		captures[c] = c.WithInferenceVariableSubstitution(mapping)
		substituted.captures = append(substituted.captures, captures[c])
	}
	for _, v := range b.InferenceVariables() {
		target := v
		if replacement, ok := mapping[v]; ok {
			target = replacement
		}
		bounds := b.mustBoundsOn(v).withSubstitution(target, substitution, captures)
		if existing, ok := substituted.bounds.Get(target); ok {
			bounds = mergeBounds(existing, bounds)
		}
		substituted.bounds = substituted.bounds.Set(target, bounds)
	}
	return substituted
}

func mergeBounds(a, b *InferenceVariableBounds) *InferenceVariableBounds {
	merged := a.clone()
	merged.equalities = dedupe(slices.Concat(a.equalities, b.equalities))
	merged.upperBounds = dedupe(slices.Concat(a.upperBounds, b.upperBounds))
	merged.lowerBounds = dedupe(slices.Concat(a.lowerBounds, b.lowerBounds))
	if merged.capture == nil {
		merged.capture = b.capture
	}
	if merged.instantiation == nil {
		merged.instantiation = b.instantiation
	}
	return merged
}

// IncorporateFrom adds to b the bounds that other holds on variables, along with every
// variable they transitively relate to. When none of those variables are known to b
// their bounds are copied over as they are, otherwise each bound is asserted again in b.
// Without variables, every bound of other is incorporated.
func (b *BoundSet) IncorporateFrom(other *BoundSet, variables ...*types.InferenceVariable) error {
	if len(variables) == 0 {
		variables = other.InferenceVariables()
	}
	related := other.relatedVariables(variables)
	captures := other.relatedCaptureConversions(related)

	if !slices.ContainsFunc(related, b.isRegistered) {
		for _, v := range related {
			b.bounds = b.bounds.Set(v, other.mustBoundsOn(v))
		}
		for _, c := range captures {
			if !slices.Contains(b.captures, c) {
				b.captures = append(slices.Clip(b.captures), c)
			}
		}
		if other.ContainsFalse() {
			b.valid = false
		}
		return nil
	}

	if other.ContainsFalse() {
		return b.Incorporate().Falsehood(true)
	}
	err := b.atomically(func(in *incorporator) error {
		for _, v := range related {
			b.AddInferenceVariable(v)
		}
		for _, v := range related {
			bounds := other.mustBoundsOn(v)
			for _, t := range bounds.equalities {
				if err := in.equality(v, t); err != nil {
					return err
				}
			}
			for _, t := range bounds.upperBounds {
				if err := in.subtype(v, t); err != nil {
					return err
				}
			}
			for _, t := range bounds.lowerBounds {
				if err := in.subtype(t, v); err != nil {
					return err
				}
			}
		}
		for _, c := range captures {
			if err := in.captureConversion(c); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrapf(err, "cannot incorporate bounds on %v", util.JoinString(related, ", "))
}

// relatedVariables closes variables under the relation of appearing in each other's
// bounds or in the same capture conversion, restricted to variables registered in b
func (b *BoundSet) relatedVariables(variables []*types.InferenceVariable) []*types.InferenceVariable {
	related := util.NewEmptySet[*types.InferenceVariable]()
	pending := util.NewStack(variables...)
	for {
		v, ok := pending.Pop()
		if !ok {
			break
		}
		bounds, registered := b.bounds.Get(v)
		if !registered || !related.Add(v) {
			continue
		}
		pending.Push(bounds.mentioned()...)
		if bounds.capture != nil {
			pending.Push(bounds.capture.mentioned()...)
		}
	}
	vars := related.AsSlice()
	sortVariables(vars)
	return vars
}

// relatedCaptureConversions are the capture conversions mentioning any of variables
func (b *BoundSet) relatedCaptureConversions(variables []*types.InferenceVariable) []*CaptureConversion {
	var related []*CaptureConversion
	for _, c := range b.captures {
		if slices.ContainsFunc(c.mentioned(), func(v *types.InferenceVariable) bool { return slices.Contains(variables, v) }) {
			related = append(related, c)
		}
	}
	return related
}

// removeCaptureConversions drops captures from b and unlinks the variables they relate to
func (b *BoundSet) removeCaptureConversions(captures []*CaptureConversion) {
	if len(captures) == 0 {
		return
	}
	b.captures = slices.DeleteFunc(slices.Clone(b.captures), func(c *CaptureConversion) bool {
		return slices.Contains(captures, c)
	})
	for _, c := range captures {
		for _, v := range c.InferenceVariables() {
			if bounds, ok := b.bounds.Get(v); ok && bounds.capture == c {
				b.update(v, func(bounds *InferenceVariableBounds) { bounds.capture = nil })
			}
		}
	}
}

// AssertConsistent panics if a bound mentions an unregistered variable or if
// the recorded instantiations do not match the equality bounds
func (b *BoundSet) AssertConsistent() {
	for _, v := range b.InferenceVariables() {
		bounds := b.mustBoundsOn(v)
		for _, mentioned := range bounds.mentioned() {
			if !b.isRegistered(mentioned) {
				inferr.Fail("bounds on %v mention unregistered inference variable %v", v, mentioned)
			}
		}
		var proper []types.Type
		for _, t := range bounds.equalities {
			if b.IsProper(t) {
				proper = append(proper, t)
			}
		}
		switch {
		case bounds.instantiation == nil && len(proper) > 0:
			inferr.Fail("%v is equal to proper type %v but has no instantiation", v, proper[0])
		case bounds.instantiation != nil && !containsType(bounds.equalities, bounds.instantiation):
			inferr.Fail("%v is instantiated to %v which is not one of its equalities", v, bounds.instantiation)
		case bounds.instantiation != nil && !b.IsProper(bounds.instantiation):
			inferr.Fail("%v is instantiated to non proper type %v", v, bounds.instantiation)
		}
		if bounds.capture != nil && !slices.Contains(b.captures, bounds.capture) {
			inferr.Fail("%v refers to capture conversion %v which is not in the bound set", v, bounds.capture)
		}
	}
	for _, c := range b.captures {
		for _, v := range c.mentioned() {
			if !b.isRegistered(v) {
				inferr.Fail("capture conversion %v mentions unregistered inference variable %v", c, v)
			}
		}
	}
}

func (b *BoundSet) String() string {
	var parts []string
	for _, v := range b.InferenceVariables() {
		bounds := b.mustBoundsOn(v)
		for _, t := range bounds.equalities {
			parts = append(parts, fmt.Sprintf("%v = %v", v, t))
		}
		for _, t := range bounds.upperBounds {
			parts = append(parts, fmt.Sprintf("%v <: %v", v, t))
		}
		for _, t := range bounds.lowerBounds {
			parts = append(parts, fmt.Sprintf("%v <: %v", t, v))
		}
	}
	for _, c := range b.captures {
		parts = append(parts, c.String())
	}
	if b.valid {
		parts = append(parts, "valid")
	} else {
		parts = append(parts, "false")
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
