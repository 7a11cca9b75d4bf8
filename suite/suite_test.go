package suite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskgen/taskgen/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "jstests/core/find.js"), "")
	writeFile(t, filepath.Join(root, "jstests/core/sort.js"), "")
	writeFile(t, filepath.Join(root, "jstests/aggregation/group.js"), "")

	def := filepath.Join(root, "core.yml")
	writeFile(t, def, `
name: core
project: myproject
variant: linux-x64
distro: ubuntu2204-small
tags: [smoke, required]
depends_on: [compile]
tests:
  - jstests/core/**/*.js
  - jstests/aggregation/group.js
limits:
  max_sub_suites: 4
  target_runtime: 10m
  max_tests: 50
`)

	s, err := Load(def, root)
	require.NoError(t, err)
	require.Equal(t, "core", s.Name)
	require.Equal(t, "myproject", s.Project)
	require.Equal(t, "linux-x64", s.Variant)
	require.Equal(t, "ubuntu2204-small", s.Distro)
	require.Equal(t, []string{"smoke", "required"}, s.Tags)
	require.Equal(t, []string{"compile"}, s.DependsOn)
	require.Equal(t, model.Limits{
		MaxSubSuites:       4,
		MaxSubSuiteRuntime: 10 * time.Minute,
		MaxSubSuiteTests:   50,
	}, s.Limits)

	var paths []string
	for _, tf := range s.Tests {
		paths = append(paths, tf.Path)
		require.Equal(t, s.Tags, tf.Tags)
	}
	require.Equal(t, []string{
		"jstests/aggregation/group.js",
		"jstests/core/find.js",
		"jstests/core/sort.js",
	}, paths, "tests must come out sorted and deduplicated")
}

func TestLoad_LiteralPathsKeptVerbatim(t *testing.T) {
	root := t.TempDir()
	def := filepath.Join(root, "s.yml")
	writeFile(t, def, `
name: s
tests:
  - jstests/not_on_disk.js
`)
	s, err := Load(def, root)
	require.NoError(t, err)
	require.Len(t, s.Tests, 1)
	require.Equal(t, "jstests/not_on_disk.js", s.Tests[0].Path)
}

func TestLoad_MalformedYAML(t *testing.T) {
	root := t.TempDir()
	def := filepath.Join(root, "bad.yml")
	writeFile(t, def, "name: [unclosed")
	_, err := Load(def, root)
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrInput))
}

func TestLoad_MissingName(t *testing.T) {
	root := t.TempDir()
	def := filepath.Join(root, "anon.yml")
	writeFile(t, def, "tests: [a.js]")
	_, err := Load(def, root)
	require.True(t, errors.Is(err, model.ErrInput))
}

func TestLoad_BadTargetRuntime(t *testing.T) {
	root := t.TempDir()
	def := filepath.Join(root, "s.yml")
	writeFile(t, def, `
name: s
tests: [a.js]
limits:
  target_runtime: tenminutes
`)
	_, err := Load(def, root)
	require.True(t, errors.Is(err, model.ErrInput))
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "suites/core.yml"), "name: core\ntests: [a.js]")
	writeFile(t, filepath.Join(root, "suites/agg.yaml"), "name: agg\ntests: [b.js]")
	writeFile(t, filepath.Join(root, "suites/notes.txt"), "ignored")

	suites, errs := LoadDir(filepath.Join(root, "suites"), root)
	require.Empty(t, errs)
	require.Len(t, suites, 2)
	names := []string{suites[0].Name, suites[1].Name}
	require.ElementsMatch(t, []string{"core", "agg"}, names)
}

func TestLoadDir_MalformedDefinitionDoesNotBlockOthers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "suites/good.yml"), "name: good\ntests: [a.js]")
	writeFile(t, filepath.Join(root, "suites/bad.yml"), "name: [unclosed")

	suites, errs := LoadDir(filepath.Join(root, "suites"), root)
	require.Len(t, suites, 1)
	require.Equal(t, "good", suites[0].Name)
	require.Len(t, errs, 1)
	require.True(t, errors.Is(errs[0], model.ErrInput))
}
