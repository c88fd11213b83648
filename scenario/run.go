package scenario

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/cottand/jinfer/inference"
	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/types"
	"github.com/pkg/errors"
)

// AnyCapture is the expected instantiation matching every fresh capture
const AnyCapture = "capture"

type Instantiation struct {
	Variable string `yaml:"variable"`
	Type     string `yaml:"type"`
}

type Resolved struct {
	Type   string `yaml:"type"`
	Result string `yaml:"result"`
}

type Result struct {
	Name           string          `yaml:"name"`
	File           string          `yaml:"file,omitempty"`
	Instantiations []Instantiation `yaml:"instantiations,omitempty"`
	Resolved       []Resolved      `yaml:"resolved,omitempty"`
	Mismatches     []string        `yaml:"mismatches,omitempty"`
	Error          string          `yaml:"error,omitempty"`

	// Err is the error that stopped the scenario, if any
	Err error `yaml:"-"`
	// Bounds is the bound set of the scenario once it stopped
	Bounds *inference.BoundSet `yaml:"-"`
}

func (r *Result) Failed() bool {
	return r.Err != nil
}

// Instantiation returns the type inferred for variable, see Scenario.Expect for how variables are named
func (r *Result) Instantiation(variable string) (string, bool) {
	for _, inst := range r.Instantiations {
		if inst.Variable == variable {
			return inst.Type, true
		}
	}
	if strings.Contains(variable, ".") {
		return "", false
	}
	found, ok := "", false
	for _, inst := range r.Instantiations {
		if strings.HasSuffix(inst.Variable, "."+variable) {
			if ok {
				// ambiguous
				return "", false
			}
			found, ok = inst.Type, true
		}
	}
	return found, ok
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.Error = err.Error()
	var inferenceErr inferr.InferenceError
	if errors.As(err, &inferenceErr) {
		r.Error = inferr.FormatWithCode(inferenceErr)
		if wrapped := err.Error(); wrapped != inferenceErr.Error() {
			r.Error += " (" + strings.TrimSuffix(wrapped, ": "+inferenceErr.Error()) + ")"
		}
	}
	return r
}

// Run applies the constraints of s in order, then infers and resolves what s asks for.
// Inference variables are named Declaration.Parameter, or by their own name when the
// scenario infers every variable. The result is never nil.
func Run(ctx context.Context, s *Scenario) *Result {
	result := &Result{Name: s.Name, File: s.File}
	env, err := newEnvironment(s)
	if err != nil {
		return result.fail(err)
	}
	resolver := inference.NewResolver()
	result.Bounds = resolver.Bounds()
	runLogger := logger.With("scenario", s.Name)

	for i, c := range s.Constraints {
		if err := ctx.Err(); err != nil {
			return result.fail(err)
		}
		if err := env.apply(resolver, c); err != nil {
			return result.fail(errors.Wrapf(err, "constraint %d (%s)", i+1, c.Kind))
		}
		runLogger.Debug("applied constraint", "index", i+1, "kind", c.Kind, "bounds", resolver.Bounds())
	}
	if err := ctx.Err(); err != nil {
		return result.fail(err)
	}

	if err := env.infer(resolver, s.Infer, result); err != nil {
		return result.fail(err)
	}
	for _, res := range s.Resolve {
		var declaration types.GenericDeclaration
		if res.Scope != "" {
			if declaration, err = env.declaration(res.Scope); err != nil {
				return result.fail(err)
			}
		}
		t, err := env.parse(declaration, res.Type)
		if err != nil {
			return result.fail(err)
		}
		var resolved types.Type
		if declaration != nil {
			resolved = resolver.ResolveTypeIn(declaration, t)
		} else {
			resolved = resolver.ResolveType(t)
		}
		result.Resolved = append(result.Resolved, Resolved{Type: res.Type, Result: resolved.String()})
		if res.Expect != "" && res.Expect != resolved.String() {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("expected %s to resolve to %s, got %v", res.Type, res.Expect, resolved))
		}
	}

	for _, variable := range slices.Sorted(maps.Keys(s.Expect)) {
		want := s.Expect[variable]
		got, ok := result.Instantiation(variable)
		switch {
		case !ok:
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("expected %s to be %s, but it was not inferred", variable, want))
		case want == AnyCapture && strings.HasPrefix(got, "CAP#"):
		case want != got:
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("expected %s to be %s, got %s", variable, want, got))
		}
	}
	if len(result.Mismatches) > 0 {
		return result.fail(env.errorf("%d expectations failed: %s", len(result.Mismatches), strings.Join(result.Mismatches, "; ")))
	}
	runLogger.Info("scenario succeeded", "instantiations", len(result.Instantiations))
	return result
}

// RunFile loads the scenario at path in fsys and runs it. Loading errors are reported
// in the result like any other failure
func RunFile(ctx context.Context, fsys fs.FS, path string) *Result {
	s, err := Load(fsys, path)
	if err != nil {
		return (&Result{Name: path, File: path}).fail(err)
	}
	return Run(ctx, s)
}

func describe(t types.Type) string {
	if c, ok := t.(*types.TypeVariableCapture); ok {
		return c.Describe()
	}
	return t.String()
}

func (env *environment) infer(resolver *inference.Resolver, declarations []string, result *Result) error {
	if len(declarations) == 0 {
		instantiations, err := resolver.InferAll()
		if err != nil {
			return err
		}
		vars := resolver.Bounds().InferenceVariables()
		names := make(map[string]int, len(vars))
		for _, v := range vars {
			names[v.Name()]++
		}
		for _, v := range vars {
			name := v.Name()
			if names[name] > 1 || name == "" {
				name = v.String()
			}
			result.Instantiations = append(result.Instantiations, Instantiation{Variable: name, Type: describe(instantiations[v])})
		}
		return nil
	}
	for _, name := range declarations {
		declaration, err := env.declaration(name)
		if err != nil {
			return err
		}
		instantiations, err := resolver.InferDeclaration(declaration)
		if err != nil {
			return errors.Wrapf(err, "cannot infer %s", name)
		}
		for _, param := range declaration.TypeParameters() {
			result.Instantiations = append(result.Instantiations, Instantiation{
				Variable: name + "." + param.Name(),
				Type:     describe(instantiations[param]),
			})
		}
	}
	return nil
}

func (env *environment) apply(resolver *inference.Resolver, c Constraint) error {
	var declaration types.GenericDeclaration
	if c.Scope != "" {
		var err error
		if declaration, err = env.declaration(c.Scope); err != nil {
			return err
		}
	}
	operand := func(expr, role string) (types.Type, error) {
		if expr == "" {
			return nil, env.errorf("%s constraints need a %s", c.Kind, role)
		}
		return env.parse(declaration, expr)
	}
	binary := func(add func(t, bound types.Type) error) error {
		t, err := operand(c.Type, "type")
		if err != nil {
			return err
		}
		bound, err := operand(c.Bound, "bound")
		if err != nil {
			return err
		}
		return add(t, bound)
	}

	switch c.Kind {
	case "lower":
		return binary(resolver.AddLowerBound)
	case "upper":
		return binary(resolver.AddUpperBound)
	case "loose":
		return binary(resolver.AddLooseCompatibility)
	case "strict":
		return binary(resolver.AddStrictCompatibility)
	case "equal":
		return binary(resolver.AddEquality)
	case "incorporate":
		if c.Type == "" {
			if declaration == nil {
				return env.errorf("incorporate constraints need a type or a scope")
			}
			_, err := resolver.IncorporateTypeParameters(declaration)
			return err
		}
		t, err := operand(c.Type, "type")
		if err != nil {
			return err
		}
		return resolver.IncorporateType(t)
	case "capture":
		t, err := operand(c.Type, "type")
		if err != nil {
			return err
		}
		p, ok := t.(*types.Parameterized)
		if !ok {
			return env.errorf("cannot capture %v, only parameterized types have wildcards to capture", t)
		}
		_, err = resolver.CaptureConversion(p)
		return err
	case "hierarchy":
		return binary(func(t, bound types.Type) error {
			super, ok := bound.(*types.Class)
			if !ok {
				return env.errorf("hierarchy bound %v must be a class", bound)
			}
			return resolver.IncorporateTypeHierarchy(t, super)
		})
	case "instantiate":
		return binary(func(t, instantiation types.Type) error {
			tv, ok := t.(*types.TypeVariable)
			if !ok {
				return env.errorf("only type variables can be instantiated, not %v", t)
			}
			return resolver.IncorporateInstantiation(tv, instantiation)
		})
	case "throws":
		return inferr.New(inferr.NewUnsupported{Feature: "throws bounds"})
	}
	return env.errorf("unknown constraint kind %q", c.Kind)
}
