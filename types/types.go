package types

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"iter"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cottand/jinfer/util"
)

// Type is any type the inference engine can reason about.
//
// Identity-bearing kinds (*Class, *TypeVariable, *InferenceVariable and
// *TypeVariableCapture) are compared by pointer. Structural kinds
// (*Parameterized, *Array, *Wildcard and *Intersection) are compared by shape,
// see Equal. Recursive bounds are only ever reachable through identity-bearing
// kinds, so traversals over the structural kinds always terminate.
type Type interface {
	fmt.Stringer
	Hash() uint64

	// children yields the structural children of a type. It never yields the
	// declared bounds of variables or captures.
	children() iter.Seq[Type]
	// mapChildren rebuilds a structural type from mapped children, returning the
	// receiver itself when nothing changed
	mapChildren(f func(Type) Type) Type
}

var (
	_ Type = (*Class)(nil)
	_ Type = (*Parameterized)(nil)
	_ Type = (*Array)(nil)
	_ Type = (*Wildcard)(nil)
	_ Type = (*Intersection)(nil)
	_ Type = (*TypeVariable)(nil)
	_ Type = (*InferenceVariable)(nil)
	_ Type = (*TypeVariableCapture)(nil)

	_ GenericDeclaration = (*Class)(nil)
	_ GenericDeclaration = (*Method)(nil)
)

var lastID atomic.Uint64

func freshID() uint64 {
	return lastID.Add(1)
}

var emptySeqType iter.Seq[Type] = func(func(Type) bool) {}

func hashOf(kind byte, parts ...uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte{kind})
	var buf [8]byte
	for _, part := range parts {
		binary.LittleEndian.PutUint64(buf[:], part)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func hashesOf(ts []Type) []uint64 {
	hashes := make([]uint64, len(ts))
	for i, t := range ts {
		hashes[i] = t.Hash()
	}
	return hashes
}

// GenericDeclaration is anything that declares type parameters: classes, methods and constructors
type GenericDeclaration interface {
	fmt.Stringer
	TypeParameters() []*TypeVariable
	// EnclosingDeclaration returns the declaration whose type parameters are also
	// in scope inside this one, or nil for top level classes and static members
	EnclosingDeclaration() GenericDeclaration
}

type classKind uint8

const (
	regularClass classKind = iota
	interfaceClass
	primitiveClass
)

// Class is a raw, class-like type. Generic classes used without arguments are raw types.
type Class struct {
	id         uint64
	name       string
	kind       classKind
	params     []*TypeVariable
	superclass Type
	interfaces []Type
	enclosing  *Class
}

// NewClass creates a class which extends Object unless SetSuperclass is called
func NewClass(name string) *Class {
	return &Class{id: freshID(), name: name, kind: regularClass}
}

func NewInterface(name string) *Class {
	return &Class{id: freshID(), name: name, kind: interfaceClass}
}

func newPrimitive(name string) *Class {
	return &Class{id: freshID(), name: name, kind: primitiveClass}
}

// AddTypeParameter declares a new type parameter. Bounds can be set afterwards,
// which allows them to mention the parameter itself
func (c *Class) AddTypeParameter(name string, bounds ...Type) *TypeVariable {
	v := newTypeVariable(name, c, bounds)
	c.params = append(c.params, v)
	return v
}

func (c *Class) SetSuperclass(t Type) *Class {
	c.superclass = t
	return c
}

func (c *Class) AddInterfaces(ts ...Type) *Class {
	c.interfaces = append(c.interfaces, ts...)
	return c
}

// SetEnclosing makes c a non-static member class of enclosing
func (c *Class) SetEnclosing(enclosing *Class) *Class {
	c.enclosing = enclosing
	return c
}

func (c *Class) Name() string { return c.name }
func (c *Class) SimpleName() string {
	if i := strings.LastIndexByte(c.name, '.'); i >= 0 {
		return c.name[i+1:]
	}
	return c.name
}
func (c *Class) IsInterface() bool               { return c.kind == interfaceClass }
func (c *Class) IsPrimitive() bool               { return c.kind == primitiveClass }
func (c *Class) IsGeneric() bool                 { return len(c.params) > 0 }
func (c *Class) TypeParameters() []*TypeVariable { return slices.Clone(c.params) }
func (c *Class) Interfaces() []Type              { return slices.Clone(c.interfaces) }
func (c *Class) Enclosing() *Class               { return c.enclosing }

func (c *Class) EnclosingDeclaration() GenericDeclaration {
	if c.enclosing == nil {
		return nil
	}
	return c.enclosing
}

// Superclass is the generic superclass, which is Object for classes declaring none
// and nil for Object itself, interfaces and primitives
func (c *Class) Superclass() Type {
	if c.superclass != nil || c.kind != regularClass || c == Object {
		return c.superclass
	}
	return Object
}

// DirectSupertypes are the generic supertypes of c as declared.
// Interfaces without superinterfaces have Object as their only supertype
func (c *Class) DirectSupertypes() []Type {
	var supertypes []Type
	if super := c.Superclass(); super != nil {
		supertypes = append(supertypes, super)
	}
	supertypes = append(supertypes, c.interfaces...)
	if len(supertypes) == 0 && c.kind == interfaceClass {
		supertypes = append(supertypes, Object)
	}
	return supertypes
}

func (c *Class) String() string                   { return c.SimpleName() }
func (c *Class) Hash() uint64                     { return hashOf('C', c.id) }
func (c *Class) children() iter.Seq[Type]         { return emptySeqType }
func (c *Class) mapChildren(func(Type) Type) Type { return c }

// Method is a generic method or constructor declaration
type Method struct {
	id     uint64
	name   string
	owner  *Class
	static bool
	params []*TypeVariable

	ParameterTypes []Type
	ReturnType     Type
}

func NewMethod(owner *Class, name string, static bool) *Method {
	return &Method{id: freshID(), name: name, owner: owner, static: static}
}

func (m *Method) AddTypeParameter(name string, bounds ...Type) *TypeVariable {
	v := newTypeVariable(name, m, bounds)
	m.params = append(m.params, v)
	return v
}

func (m *Method) Name() string                    { return m.name }
func (m *Method) Owner() *Class                   { return m.owner }
func (m *Method) IsStatic() bool                  { return m.static }
func (m *Method) TypeParameters() []*TypeVariable { return slices.Clone(m.params) }
func (m *Method) String() string {
	if m.owner == nil {
		return m.name
	}
	return m.owner.SimpleName() + "." + m.name
}

func (m *Method) EnclosingDeclaration() GenericDeclaration {
	if m.static || m.owner == nil {
		return nil
	}
	return m.owner
}

// TypeVariable is a declared type parameter of a GenericDeclaration
type TypeVariable struct {
	id          uint64
	name        string
	declaration GenericDeclaration
	bounds      []Type
}

func newTypeVariable(name string, declaration GenericDeclaration, bounds []Type) *TypeVariable {
	return &TypeVariable{id: freshID(), name: name, declaration: declaration, bounds: bounds}
}

func (v *TypeVariable) SetBounds(bounds ...Type) { v.bounds = bounds }

// Bounds are the declared upper bounds, empty when the variable is only bounded by Object
func (v *TypeVariable) Bounds() []Type                   { return slices.Clone(v.bounds) }
func (v *TypeVariable) Name() string                     { return v.name }
func (v *TypeVariable) Declaration() GenericDeclaration  { return v.declaration }
func (v *TypeVariable) String() string                   { return v.name }
func (v *TypeVariable) Hash() uint64                     { return hashOf('V', v.id) }
func (v *TypeVariable) children() iter.Seq[Type]         { return emptySeqType }
func (v *TypeVariable) mapChildren(func(Type) Type) Type { return v }

// InferenceVariable is a placeholder for a type which is yet to be inferred.
// The name is only used for diagnostics
type InferenceVariable struct {
	id   uint64
	name string
}

func NewInferenceVariable(name string) *InferenceVariable {
	return &InferenceVariable{id: freshID(), name: name}
}

func (v *InferenceVariable) ID() uint64   { return v.id }
func (v *InferenceVariable) Name() string { return v.name }
func (v *InferenceVariable) String() string {
	name := v.name
	if name == "" {
		name = "α"
	}
	return name + "#" + strconv.FormatUint(v.id, 10)
}
func (v *InferenceVariable) Hash() uint64                     { return hashOf('I', v.id) }
func (v *InferenceVariable) children() iter.Seq[Type]         { return emptySeqType }
func (v *InferenceVariable) mapChildren(func(Type) Type) Type { return v }

// TypeVariableCapture is a fresh type variable standing for some specific but
// unknown type within its bounds. The capture itself is a proper type, although its
// bounds may mention inference variables which are resolved after it.
type TypeVariableCapture struct {
	id          uint64
	name        string
	upperBounds []Type
	lowerBounds []Type

	// Wildcard is the captured wildcard, if this capture came from one
	Wildcard *Wildcard
	// Parameter is the type parameter the captured wildcard was an argument for, if any
	Parameter *TypeVariable
}

func NewTypeVariableCapture(name string) *TypeVariableCapture {
	return &TypeVariableCapture{id: freshID(), name: name}
}

// SetBounds may only be called while the capture is being created, so that bounds may refer to the capture itself
func (c *TypeVariableCapture) SetBounds(upper, lower []Type) {
	c.upperBounds = upper
	c.lowerBounds = lower
}

// UpperBounds are never empty: a capture without declared upper bounds is bounded by Object
func (c *TypeVariableCapture) UpperBounds() []Type {
	if len(c.upperBounds) == 0 {
		return []Type{Object}
	}
	return slices.Clone(c.upperBounds)
}
func (c *TypeVariableCapture) LowerBounds() []Type { return slices.Clone(c.lowerBounds) }
func (c *TypeVariableCapture) Name() string        { return c.name }
func (c *TypeVariableCapture) String() string {
	return "CAP#" + strconv.FormatUint(c.id, 10)
}

// Describe renders the capture together with its bounds
func (c *TypeVariableCapture) Describe() string {
	sb := strings.Builder{}
	sb.WriteString(c.String())
	if len(c.upperBounds) > 0 {
		sb.WriteString(" extends ")
		sb.WriteString(util.JoinString(c.upperBounds, " & "))
	}
	if len(c.lowerBounds) > 0 {
		sb.WriteString(" super ")
		sb.WriteString(util.JoinString(c.lowerBounds, " & "))
	}
	return sb.String()
}
func (c *TypeVariableCapture) Hash() uint64                     { return hashOf('K', c.id) }
func (c *TypeVariableCapture) children() iter.Seq[Type]         { return emptySeqType }
func (c *TypeVariableCapture) mapChildren(func(Type) Type) Type { return c }

// Parameterized is a generic class applied to type arguments, G<A1..An>,
// optionally qualified by the parameterization of its enclosing class
type Parameterized struct {
	raw       *Class
	owner     Type
	arguments []Type
}

// NewParameterized panics when the number of arguments does not match the
// number of type parameters, which is always a programming error
func NewParameterized(raw *Class, arguments ...Type) *Parameterized {
	return NewOwnedParameterized(nil, raw, arguments...)
}

func NewOwnedParameterized(owner Type, raw *Class, arguments ...Type) *Parameterized {
	if len(arguments) != len(raw.params) {
		panic(fmt.Sprintf("%s expects %d type arguments but got %d", raw, len(raw.params), len(arguments)))
	}
	return &Parameterized{raw: raw, owner: owner, arguments: arguments}
}

func (p *Parameterized) Raw() *Class       { return p.raw }
func (p *Parameterized) Owner() Type       { return p.owner }
func (p *Parameterized) Arguments() []Type { return slices.Clone(p.arguments) }
func (p *Parameterized) String() string {
	prefix := ""
	if p.owner != nil {
		prefix = p.owner.String() + "."
	}
	return prefix + p.raw.SimpleName() + "<" + util.JoinString(p.arguments, ", ") + ">"
}
func (p *Parameterized) Hash() uint64 {
	owner := uint64(0)
	if p.owner != nil {
		owner = p.owner.Hash()
	}
	return hashOf('P', append([]uint64{p.raw.Hash(), owner}, hashesOf(p.arguments)...)...)
}
func (p *Parameterized) children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		if p.owner != nil && !yield(p.owner) {
			return
		}
		for _, arg := range p.arguments {
			if !yield(arg) {
				return
			}
		}
	}
}
func (p *Parameterized) mapChildren(f func(Type) Type) Type {
	changed := false
	var owner Type
	if p.owner != nil {
		owner = f(p.owner)
		changed = owner != p.owner
	}
	args := make([]Type, len(p.arguments))
	for i, arg := range p.arguments {
		args[i] = f(arg)
		changed = changed || args[i] != arg
	}
	if !changed {
		return p
	}
	return &Parameterized{raw: p.raw, owner: owner, arguments: args}
}

type Array struct {
	component Type
}

func NewArray(component Type) *Array { return &Array{component: component} }

func (a *Array) Component() Type          { return a.component }
func (a *Array) String() string           { return a.component.String() + "[]" }
func (a *Array) Hash() uint64             { return hashOf('A', a.component.Hash()) }
func (a *Array) children() iter.Seq[Type] { return util.SingleIter(a.component) }
func (a *Array) mapChildren(f func(Type) Type) Type {
	if c := f(a.component); c != a.component {
		return &Array{component: c}
	}
	return a
}

// Wildcard is a type argument of the form ?, ? extends U or ? super L
type Wildcard struct {
	upperBounds []Type
	lowerBounds []Type
}

func Unbounded() *Wildcard { return &Wildcard{} }

// Extends builds ? extends U1 & ... & Un. ? extends Object is normalised to ?
func Extends(bounds ...Type) *Wildcard {
	bounds = slices.DeleteFunc(slices.Clone(bounds), func(t Type) bool { return t == Object })
	return &Wildcard{upperBounds: bounds}
}

func Super(bounds ...Type) *Wildcard {
	return &Wildcard{lowerBounds: slices.Clone(bounds)}
}

func (w *Wildcard) IsUnbounded() bool { return len(w.upperBounds) == 0 && len(w.lowerBounds) == 0 }
func (w *Wildcard) HasLowerBound() bool { return len(w.lowerBounds) > 0 }
func (w *Wildcard) HasUpperBound() bool { return len(w.upperBounds) > 0 }

// UpperBounds are the declared upper bounds, empty for ? and ? super L
func (w *Wildcard) UpperBounds() []Type { return slices.Clone(w.upperBounds) }
func (w *Wildcard) LowerBounds() []Type { return slices.Clone(w.lowerBounds) }

// UpperBound is the intersection of the upper bounds, or Object
func (w *Wildcard) UpperBound() Type { return NewIntersection(w.upperBounds...) }

// LowerBound is the intersection of the lower bounds, or nil when there is none
func (w *Wildcard) LowerBound() Type {
	if len(w.lowerBounds) == 0 {
		return nil
	}
	return NewIntersection(w.lowerBounds...)
}

func (w *Wildcard) String() string {
	switch {
	case len(w.lowerBounds) > 0:
		return "? super " + util.JoinString(w.lowerBounds, " & ")
	case len(w.upperBounds) > 0:
		return "? extends " + util.JoinString(w.upperBounds, " & ")
	default:
		return "?"
	}
}
func (w *Wildcard) Hash() uint64 {
	parts := append(hashesOf(w.upperBounds), 0xFF)
	return hashOf('W', append(parts, hashesOf(w.lowerBounds)...)...)
}
func (w *Wildcard) children() iter.Seq[Type] {
	return util.ConcatIter(slices.Values(w.upperBounds), slices.Values(w.lowerBounds))
}
func (w *Wildcard) mapChildren(f func(Type) Type) Type {
	upper, upperChanged := mapTypes(w.upperBounds, f)
	lower, lowerChanged := mapTypes(w.lowerBounds, f)
	if !upperChanged && !lowerChanged {
		return w
	}
	return &Wildcard{upperBounds: upper, lowerBounds: lower}
}

// Intersection is a conjunction of types A & B & ...
// Construct with NewIntersection
type Intersection struct {
	types []Type
}

// NewIntersection flattens nested intersections and drops duplicates as well as
// a redundant Object. It returns Object for no types and the type itself for a single one.
// Classes are ordered before interfaces.
func NewIntersection(ts ...Type) Type {
	var flat []Type
	var add func(t Type)
	add = func(t Type) {
		if inter, ok := t.(*Intersection); ok {
			for _, member := range inter.types {
				add(member)
			}
			return
		}
		if !slices.ContainsFunc(flat, func(existing Type) bool { return Equal(existing, t) }) {
			flat = append(flat, t)
		}
	}
	for _, t := range ts {
		add(t)
	}
	if len(flat) > 1 {
		flat = slices.DeleteFunc(flat, func(t Type) bool { return t == Object })
	}
	switch len(flat) {
	case 0:
		return Object
	case 1:
		return flat[0]
	}
	slices.SortStableFunc(flat, func(a, b Type) int {
		return interfaceRank(a) - interfaceRank(b)
	})
	return &Intersection{types: flat}
}

func interfaceRank(t Type) int {
	if raw := RawType(t); raw != nil && !raw.IsInterface() {
		return 0
	}
	return 1
}

func (i *Intersection) Types() []Type            { return slices.Clone(i.types) }
func (i *Intersection) String() string           { return util.JoinString(i.types, " & ") }
func (i *Intersection) Hash() uint64             { return hashOf('N', hashesOf(i.types)...) }
func (i *Intersection) children() iter.Seq[Type] { return slices.Values(i.types) }
func (i *Intersection) mapChildren(f func(Type) Type) Type {
	mapped, changed := mapTypes(i.types, f)
	if !changed {
		return i
	}
	return NewIntersection(mapped...)
}

func mapTypes(ts []Type, f func(Type) Type) ([]Type, bool) {
	if len(ts) == 0 {
		return ts, false
	}
	changed := false
	mapped := make([]Type, len(ts))
	for i, t := range ts {
		mapped[i] = f(t)
		changed = changed || mapped[i] != t
	}
	return mapped, changed
}

// Equal compares types structurally. Identity-bearing types are only equal to themselves.
func Equal(a, b Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch a := a.(type) {
	case *Parameterized:
		b, ok := b.(*Parameterized)
		if !ok || a.raw != b.raw || (a.owner == nil) != (b.owner == nil) {
			return false
		}
		if a.owner != nil && !Equal(a.owner, b.owner) {
			return false
		}
		return slices.EqualFunc(a.arguments, b.arguments, Equal)
	case *Array:
		b, ok := b.(*Array)
		return ok && Equal(a.component, b.component)
	case *Wildcard:
		b, ok := b.(*Wildcard)
		return ok && sameMembers(a.upperBounds, b.upperBounds) && sameMembers(a.lowerBounds, b.lowerBounds)
	case *Intersection:
		b, ok := b.(*Intersection)
		return ok && sameMembers(a.types, b.types)
	}
	return false
}

func sameMembers(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for _, t := range a {
		if !slices.ContainsFunc(b, func(u Type) bool { return Equal(t, u) }) {
			return false
		}
	}
	return true
}

// Walk yields t and every type structurally nested inside it, depth first
func Walk(t Type) iter.Seq[Type] {
	return func(yield func(Type) bool) {
		stack := util.NewStack(t)
		for {
			next, ok := stack.Pop()
			if !ok {
				return
			}
			if !yield(next) {
				return
			}
			children := slices.Collect(next.children())
			slices.Reverse(children)
			stack.Push(children...)
		}
	}
}

// MentionedInferenceVariables lists the inference variables occurring in t, without duplicates
func MentionedInferenceVariables(t Type) []*InferenceVariable {
	var vars []*InferenceVariable
	for nested := range Walk(t) {
		if v, ok := nested.(*InferenceVariable); ok && !slices.Contains(vars, v) {
			vars = append(vars, v)
		}
	}
	return vars
}

// Mentions reports whether any type nested inside t satisfies pred
func Mentions(t Type, pred func(Type) bool) bool {
	for nested := range Walk(t) {
		if pred(nested) {
			return true
		}
	}
	return false
}

// MentionsThroughCaptures is like Mentions, but also looks into the bounds of every
// capture nested inside t
func MentionsThroughCaptures(t Type, pred func(Type) bool) bool {
	seen := map[*TypeVariableCapture]bool{}
	var mentions func(t Type) bool
	mentions = func(t Type) bool {
		for nested := range Walk(t) {
			if pred(nested) {
				return true
			}
			c, ok := nested.(*TypeVariableCapture)
			if !ok || seen[c] {
				continue
			}
			seen[c] = true
			if slices.ContainsFunc(c.upperBounds, mentions) || slices.ContainsFunc(c.lowerBounds, mentions) {
				return true
			}
		}
		return false
	}
	return mentions(t)
}

// IsProper is true when t mentions no inference variable at all
func IsProper(t Type) bool {
	return !Mentions(t, func(nested Type) bool {
		_, ok := nested.(*InferenceVariable)
		return ok
	})
}

// RawType is the class of a class or parameterized type, and nil for every other kind
func RawType(t Type) *Class {
	switch t := t.(type) {
	case *Class:
		return t
	case *Parameterized:
		return t.raw
	}
	return nil
}
