package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the reported outcome of a historical test execution.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// HistoryRecord is a single historical execution of one test, as reported by
// the stats service. Records may be duplicated across variants or carry
// corrupted fields; the estimator is responsible for filtering them.
type HistoryRecord struct {
	// Identifier of the test, usually a file path. Hook executions are
	// reported as "<test>:<hook>".
	TestID string `json:"test_id"`
	// Duration of the execution
	Duration time.Duration `json:"duration"`
	// Timestamp when the execution started
	Timestamp time.Time `json:"timestamp"`
	// Outcome of the execution
	Status Status `json:"status"`
}

// TestFile is one test belonging to a suite.
type TestFile struct {
	// Path of the test file, relative to the repository root
	Path string `json:"path"`
	// Historical duration samples that contributed to the estimate
	Samples []HistoryRecord `json:"samples,omitempty"`
	// Estimated runtime, non-negative once estimation has run
	Estimate time.Duration `json:"estimate"`
	// Tags inherited from the suite
	Tags []string `json:"tags,omitempty"`
}

// Limits are the split constraints for a suite. MaxSubSuites is a hard
// ceiling; the other two are soft targets the partitioner may relax rather
// than drop a test. A zero value means unlimited.
type Limits struct {
	MaxSubSuites       int
	MaxSubSuiteRuntime time.Duration
	MaxSubSuiteTests   int
}

// Suite is a parsed suite definition plus the metadata its generated tasks
// inherit.
type Suite struct {
	Name      string
	Project   string
	Variant   string
	Distro    string
	Tags      []string
	DependsOn []string
	// Tests in canonical (sorted) order; the partitioner relies on this
	// order for deterministic tie-breaking.
	Tests  []TestFile
	Limits Limits
}

// SubSuite is one generated subset of a suite's tests.
type SubSuite struct {
	Name    string
	Index   int
	Tests   []string
	Runtime time.Duration
	Variant string
	Distro  string
	Tags    []string
}

// TaskDef is one generated task definition in the output document.
type TaskDef struct {
	Name      string
	Suite     string
	TestFiles []string
	Runtime   time.Duration
	Tags      []string
	DependsOn []string
	Variant   string
	Distro    string
}

// DisplayTask groups the generated sub-tasks under the parent task name so
// result aggregation keeps working on the original name.
type DisplayTask struct {
	Name           string
	ExecutionTasks []string
}

// GeneratorTask is the top-level entry referencing every generated task.
type GeneratorTask struct {
	Name  string
	Tasks []string
}

// GeneratedConfig is the complete generated-tasks document for one suite.
type GeneratedConfig struct {
	Generator    GeneratorTask
	Tasks        []TaskDef
	DisplayTasks []DisplayTask
}

// TestKey canonicalizes a test identifier for matching history records
// against suite test paths: the base name without extension. The stats
// service reports bare test names while suite definitions list file paths.
func TestKey(testID string) string {
	base := filepath.Base(testID)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
