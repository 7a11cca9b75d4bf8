// Package suite loads declarative suite definitions: the tests a suite runs,
// the metadata its generated tasks inherit, and optional split limits.
package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/taskgen/taskgen/model"
)

// doc is the YAML shape of a suite definition file.
type doc struct {
	Name      string   `yaml:"name"`
	Project   string   `yaml:"project"`
	Variant   string   `yaml:"variant"`
	Distro    string   `yaml:"distro"`
	Tags      []string `yaml:"tags"`
	DependsOn []string `yaml:"depends_on"`
	Tests     []string `yaml:"tests"`
	Limits    struct {
		MaxSubSuites  int    `yaml:"max_sub_suites"`
		TargetRuntime string `yaml:"target_runtime"`
		MaxTests      int    `yaml:"max_tests"`
	} `yaml:"limits"`
}

// Load parses the suite definition at path. Test entries may be literal file
// paths or doublestar glob patterns, resolved relative to rootDir; the
// resulting list is deduplicated and sorted so every run sees the same
// canonical order. Any parse or pattern failure is an input error, fatal to
// this suite only.
func Load(path, rootDir string) (model.Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Suite{}, fmt.Errorf("%w: reading suite definition %s: %v", model.ErrInput, path, err)
	}
	var d doc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return model.Suite{}, fmt.Errorf("%w: parsing suite definition %s: %v", model.ErrInput, path, err)
	}
	if d.Name == "" {
		return model.Suite{}, fmt.Errorf("%w: suite definition %s has no name", model.ErrInput, path)
	}

	paths, err := expandTests(d.Tests, rootDir)
	if err != nil {
		return model.Suite{}, fmt.Errorf("%w: suite %s: %v", model.ErrInput, d.Name, err)
	}

	limits := model.Limits{
		MaxSubSuites:     d.Limits.MaxSubSuites,
		MaxSubSuiteTests: d.Limits.MaxTests,
	}
	if d.Limits.TargetRuntime != "" {
		runtime, err := time.ParseDuration(d.Limits.TargetRuntime)
		if err != nil {
			return model.Suite{}, fmt.Errorf("%w: suite %s: invalid target_runtime %q: %v",
				model.ErrInput, d.Name, d.Limits.TargetRuntime, err)
		}
		limits.MaxSubSuiteRuntime = runtime
	}

	tests := make([]model.TestFile, len(paths))
	for i, p := range paths {
		tests[i] = model.TestFile{Path: p, Tags: d.Tags}
	}
	return model.Suite{
		Name:      d.Name,
		Project:   d.Project,
		Variant:   d.Variant,
		Distro:    d.Distro,
		Tags:      d.Tags,
		DependsOn: d.DependsOn,
		Tests:     tests,
		Limits:    limits,
	}, nil
}

// LoadDir loads every .yml/.yaml suite definition directly under dir. A
// malformed definition fails only itself: its error is collected and the
// remaining suites still load.
func LoadDir(dir, rootDir string) ([]model.Suite, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("%w: reading suite directory %s: %v", model.ErrInput, dir, err)}
	}
	var suites []model.Suite
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		s, err := Load(filepath.Join(dir, entry.Name()), rootDir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		suites = append(suites, s)
	}
	return suites, errs
}

// expandTests resolves literal paths and glob patterns into one sorted,
// deduplicated list of test paths relative to rootDir.
func expandTests(patterns []string, rootDir string) ([]string, error) {
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if !isGlob(pattern) {
			seen[pattern] = true
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(rootDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad test pattern %q: %v", pattern, err)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(rootDir, m)
			if err != nil {
				rel = m
			}
			seen[filepath.ToSlash(rel)] = true
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
