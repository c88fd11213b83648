package scenario

import (
	"strings"

	"github.com/cottand/jinfer/types"
)

// environment holds the declarations of a scenario on top of the built-in classes
type environment struct {
	file    string
	classes map[string]*types.Class
	methods map[string]*types.Method
}

func newEnvironment(s *Scenario) (*environment, error) {
	env := &environment{
		file:    s.File,
		classes: make(map[string]*types.Class, len(s.Classes)),
		methods: make(map[string]*types.Method, len(s.Methods)),
	}
	declared := make([]*types.Class, len(s.Classes))
	for i, decl := range s.Classes {
		if decl.Name == "" {
			return nil, env.errorf("class %d has no name", i+1)
		}
		if _, exists := env.classes[decl.Name]; exists {
			return nil, env.errorf("class %s is declared twice", decl.Name)
		}
		c := types.NewClass(decl.Name)
		if decl.Interface {
			c = types.NewInterface(decl.Name)
		}
		declared[i] = c
		env.classes[decl.Name] = c
		if simple := c.SimpleName(); simple != decl.Name {
			env.classes[simple] = c
		}
	}

	for i, decl := range s.Classes {
		c := declared[i]
		if decl.Enclosing != "" {
			enclosing, ok := env.class(decl.Enclosing)
			if !ok {
				return nil, env.errorf("class %s is enclosed by unknown class %s", decl.Name, decl.Enclosing)
			}
			c.SetEnclosing(enclosing)
		}
		for _, param := range decl.Params {
			c.AddTypeParameter(param.Name)
		}
	}

	// bounds and supertypes may mention any class and type parameter, so they come last
	for i, decl := range s.Classes {
		c := declared[i]
		if err := env.boundTypeParameters(c, c.TypeParameters(), decl.Params); err != nil {
			return nil, err
		}
		if decl.Extends != "" {
			super, err := env.parse(c, decl.Extends)
			if err != nil {
				return nil, err
			}
			if raw := types.RawType(super); raw == nil || raw.IsInterface() || raw.IsPrimitive() {
				return nil, env.errorf("class %s cannot extend %v", decl.Name, super)
			}
			c.SetSuperclass(super)
		}
		for _, expr := range decl.Implements {
			super, err := env.parse(c, expr)
			if err != nil {
				return nil, err
			}
			if raw := types.RawType(super); raw == nil || !raw.IsInterface() {
				return nil, env.errorf("class %s cannot implement %v", decl.Name, super)
			}
			c.AddInterfaces(super)
		}
	}
	for _, c := range declared {
		for _, super := range c.DirectSupertypes() {
			if raw := types.RawType(super); raw != nil && types.IsSubclass(raw, c) {
				return nil, env.errorf("class %s inherits from itself through %v", c.Name(), super)
			}
		}
	}

	for i, decl := range s.Methods {
		owner, ok := env.class(decl.Owner)
		if !ok {
			return nil, env.errorf("method %d (%s) has unknown owner %q", i+1, decl.Name, decl.Owner)
		}
		key := owner.SimpleName() + "." + decl.Name
		if _, exists := env.methods[key]; exists {
			return nil, env.errorf("method %s is declared twice", key)
		}
		m := types.NewMethod(owner, decl.Name, decl.Static)
		env.methods[key] = m
		env.methods[owner.Name()+"."+decl.Name] = m
		for _, param := range decl.Params {
			m.AddTypeParameter(param.Name)
		}
		if err := env.boundTypeParameters(m, m.TypeParameters(), decl.Params); err != nil {
			return nil, err
		}
		for _, expr := range decl.Parameters {
			t, err := env.parse(m, expr)
			if err != nil {
				return nil, err
			}
			m.ParameterTypes = append(m.ParameterTypes, t)
		}
		if decl.Returns != "" {
			t, err := env.parse(m, decl.Returns)
			if err != nil {
				return nil, err
			}
			m.ReturnType = t
		}
	}
	logger.Debug("built environment", "file", s.File, "classes", len(declared), "methods", len(env.methods))
	return env, nil
}

func (env *environment) errorf(format string, args ...any) error {
	return scenarioError(env.file, format, args...)
}

func (env *environment) boundTypeParameters(declaration types.GenericDeclaration, params []*types.TypeVariable, decls []TypeParameter) error {
	for i, param := range params {
		var bounds []types.Type
		for _, expr := range decls[i].Bounds {
			bound, err := env.parse(declaration, expr)
			if err != nil {
				return err
			}
			bounds = append(bounds, intersectionMembers(bound)...)
		}
		param.SetBounds(bounds...)
	}
	return nil
}

// class finds a scenario class first, then a built-in one, by simple or qualified name
func (env *environment) class(name string) (*types.Class, bool) {
	if c, ok := env.classes[name]; ok {
		return c, true
	}
	simple := name[strings.LastIndex(name, ".")+1:]
	c, ok := types.LookupBuiltin(simple)
	if !ok || simple != name && c.Name() != name {
		return nil, false
	}
	return c, true
}

// declaration finds a method, written Owner.name, or a class
func (env *environment) declaration(name string) (types.GenericDeclaration, error) {
	if m, ok := env.methods[name]; ok {
		return m, nil
	}
	if c, ok := env.class(name); ok {
		return c, nil
	}
	return nil, env.errorf("unknown declaration %s", name)
}

// parse reads expr where the type parameters of declaration and of its enclosing
// declarations are in scope. The innermost declaration wins on clashes
func (env *environment) parse(declaration types.GenericDeclaration, expr string) (types.Type, error) {
	t, err := parseType(expr, func(name string) (types.Type, bool) {
		for d := declaration; d != nil; d = d.EnclosingDeclaration() {
			for _, param := range d.TypeParameters() {
				if param.Name() == name {
					return param, true
				}
			}
		}
		if c, ok := env.class(name); ok {
			return c, true
		}
		return nil, false
	})
	if err != nil {
		return nil, env.errorf("%v", err)
	}
	return t, nil
}
