// Package scenario drives the inference engine from YAML documents describing
// class and method declarations and a script of constraints over them
package scenario

import (
	"bytes"
	"io/fs"

	"github.com/Masterminds/semver/v3"
	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/internal/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var logger = log.DefaultLogger.With("section", "scenario")

// SupportedVersions are the scenario format versions this package understands
const SupportedVersions = ">= 1.0.0, < 2.0.0"

var supported = mustConstraint(SupportedVersions)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

type Scenario struct {
	Version     string       `yaml:"version"`
	Name        string       `yaml:"name"`
	Classes     []Class      `yaml:"classes,omitempty"`
	Methods     []Method     `yaml:"methods,omitempty"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
	// Infer names the declarations whose type parameters are inferred.
	// When empty, every inference variable is
	Infer   []string          `yaml:"infer,omitempty"`
	Resolve []Resolution      `yaml:"resolve,omitempty"`
	Expect  map[string]string `yaml:"expect,omitempty"`

	// File is the path the scenario was loaded from, if any
	File string `yaml:"-"`
}

type TypeParameter struct {
	Name   string   `yaml:"name"`
	Bounds []string `yaml:"bounds,omitempty"`
}

type Class struct {
	Name       string          `yaml:"name"`
	Params     []TypeParameter `yaml:"params,omitempty"`
	Extends    string          `yaml:"extends,omitempty"`
	Implements []string        `yaml:"implements,omitempty"`
	Interface  bool            `yaml:"interface,omitempty"`
	// Enclosing makes this a non-static member class of the named class
	Enclosing string `yaml:"enclosing,omitempty"`
}

type Method struct {
	Name       string          `yaml:"name"`
	Owner      string          `yaml:"owner"`
	Static     bool            `yaml:"static,omitempty"`
	Params     []TypeParameter `yaml:"params,omitempty"`
	Parameters []string        `yaml:"parameters,omitempty"`
	Returns    string          `yaml:"returns,omitempty"`
}

// Constraint is a single step of the script. Type and Bound are type expressions
// read in the scope of the declaration named by Scope
type Constraint struct {
	Kind  string `yaml:"kind"`
	Scope string `yaml:"scope,omitempty"`
	Type  string `yaml:"type,omitempty"`
	Bound string `yaml:"bound,omitempty"`
}

type Resolution struct {
	Scope  string `yaml:"scope,omitempty"`
	Type   string `yaml:"type"`
	Expect string `yaml:"expect,omitempty"`
}

func scenarioError(file, format string, args ...any) error {
	return inferr.New(inferr.NewScenario{File: file, Message: errors.Errorf(format, args...).Error()})
}

// Parse decodes a scenario document, rejecting unknown fields and unsupported versions
func Parse(file string, data []byte) (*Scenario, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	s := &Scenario{File: file}
	if err := decoder.Decode(s); err != nil {
		return nil, scenarioError(file, "malformed scenario: %v", err)
	}
	if s.Version == "" {
		return nil, scenarioError(file, "missing scenario version")
	}
	version, err := semver.NewVersion(s.Version)
	if err != nil {
		return nil, scenarioError(file, "invalid scenario version %q: %v", s.Version, err)
	}
	if !supported.Check(version) {
		return nil, scenarioError(file, "scenario version %v is not in %s", version, SupportedVersions)
	}
	if s.Name == "" {
		s.Name = file
	}
	logger.Debug("parsed scenario", "file", file, "name", s.Name, "version", version)
	return s, nil
}

// Load reads and parses the scenario at path in fsys
func Load(fsys fs.FS, path string) (*Scenario, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read scenario %s", path)
	}
	return Parse(path, data)
}
