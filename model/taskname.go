package model

import (
	"fmt"
	"math"
	"strings"
)

// GenSuffix marks a task in the project config as one that generates its
// real sub-tasks at runtime.
const GenSuffix = "_gen"

// NameGeneratedTask names the sub-task at index out of total generated for
// parent. The index is zero-padded to the width of the largest index so the
// generated names sort lexically, and an optional variant suffix is appended.
func NameGeneratedTask(parent string, index, total int, variant string) string {
	suffix := ""
	if variant != "" {
		suffix = "_" + variant
	}
	width := 0
	if total > 0 {
		width = int(math.Ceil(math.Log10(float64(total))))
	}
	return fmt.Sprintf("%s_%0*d%s", parent, width, index, suffix)
}

// NameMiscTask names the catch-all sub-task that runs tests not known at
// generation time.
func NameMiscTask(parent, variant string) string {
	suffix := ""
	if variant != "" {
		suffix = "_" + variant
	}
	return fmt.Sprintf("%s_misc%s", parent, suffix)
}

// RemoveGenSuffix strips the trailing "_gen" marker from a task name.
func RemoveGenSuffix(taskName string) string {
	return strings.TrimSuffix(taskName, GenSuffix)
}
