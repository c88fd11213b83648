package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cottand/jinfer/inference/inferr"
	"github.com/cottand/jinfer/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const passing = `version: "1.0.0"
name: passing
constraints:
  - {kind: lower, scope: List, type: E, bound: Integer}
infer: [List]
`

const failing = `version: "1.0.0"
name: failing
constraints:
  - {kind: throws, scope: List, type: E}
`

func writeScenarios(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestResolveTargets(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"b.yaml":    passing,
		"a.yml":     passing,
		"notes.txt": "not a scenario",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	files, err := resolveTargets([]string{dir, filepath.Join(dir, "b.yaml")})
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.String())
	}
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, names)

	_, err = resolveTargets([]string{filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestInferTargets(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"passing.yaml": passing, "failing.yaml": failing})
	out := &bytes.Buffer{}
	p, err := newPrinter(out, formatText, false)
	require.NoError(t, err)

	err = inferTargets(context.Background(), []string{dir}, p)
	require.Error(t, err)
	var errs *inferr.Errors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs.Errors(), 1)
	assert.Equal(t, inferr.Unsupported, errs.Errors()[0].Code())

	assert.Equal(t, ""+
		"FAIL failing\n"+
		"     (E004) throws bounds is not supported (constraint 1 (throws))\n"+
		"ok   passing\n"+
		"     List.E = Integer\n", out.String())
}

func TestInferTargetsPassing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"passing.yaml": passing})
	out := &bytes.Buffer{}
	p, err := newPrinter(out, formatYAML, false)
	require.NoError(t, err)

	require.NoError(t, inferTargets(context.Background(), []string{filepath.Join(dir, "passing.yaml")}, p))

	var results []scenario.Result
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "passing", results[0].Name)
	assert.Equal(t, []scenario.Instantiation{{Variable: "List.E", Type: "Integer"}}, results[0].Instantiations)
	assert.Empty(t, results[0].Error)
}

func TestPrinterDump(t *testing.T) {
	out := &bytes.Buffer{}
	p, err := newPrinter(out, formatText, true)
	require.NoError(t, err)
	require.NoError(t, p.print([]*scenario.Result{{Name: "dumped", Instantiations: []scenario.Instantiation{{Variable: "T", Type: "String"}}}}))
	assert.Contains(t, out.String(), "ok   dumped\n     T = String\n")
	assert.Contains(t, out.String(), "Variable: (string) (len=1) \"T\"")
}

func TestUnknownFormat(t *testing.T) {
	_, err := newPrinter(&bytes.Buffer{}, "json", false)
	assert.EqualError(t, err, `unknown output format "json", expected text or yaml`)
}

func TestRunScenariosCancelled(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"passing.yaml": passing})
	files, err := resolveTargets([]string{dir})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = runScenarios(ctx, files, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
