package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// scenarioFile is a scenario document found from a command line argument
type scenarioFile struct {
	fsys fs.FS
	// root is the absolute directory fsys is rooted at
	root string
	path string
}

func (f scenarioFile) String() string {
	return filepath.Join(f.root, f.path)
}

func isScenarioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// resolveTargets expands each argument into scenario files: a directory stands
// for every scenario file directly inside it
func resolveTargets(args []string) ([]scenarioFile, error) {
	var files []scenarioFile
	for _, arg := range args {
		target, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of target: %w", err)
		}
		stat, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("could not stat target: %w", err)
		}
		if !stat.IsDir() {
			parent := filepath.Dir(target)
			files = append(files, scenarioFile{fsys: os.DirFS(parent), root: parent, path: filepath.Base(target)})
			continue
		}

		folderFS := os.DirFS(target)
		entries, err := fs.ReadDir(folderFS, ".")
		if err != nil {
			return nil, fmt.Errorf("could not list %s: %w", target, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isScenarioFile(entry.Name()) {
				continue
			}
			files = append(files, scenarioFile{fsys: folderFS, root: target, path: entry.Name()})
		}
	}
	slices.SortStableFunc(files, func(a, b scenarioFile) int {
		return strings.Compare(a.String(), b.String())
	})
	return slices.CompactFunc(files, func(a, b scenarioFile) bool {
		return a.String() == b.String()
	}), nil
}
