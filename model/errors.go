package model

import (
	"errors"
	"fmt"
)

// Error kinds for the generation pipeline. Callers classify failures with
// errors.Is; see the package-level taxonomy:
//
//   - ErrInput: a malformed suite definition or unreadable test pattern.
//     Fatal to that suite's generation only.
//   - ErrHistoryFetch: the stats service failed or timed out. Recoverable,
//     the affected suite falls back to cold-start estimates.
//   - ErrNotFound: no history exists for the requested suite. A subset of
//     the fetch failure handling.
//   - ErrInvariant: a partition dropped or duplicated a test. Must never
//     happen by construction; aborts the run if it does.
//   - ErrEncode: the generated document failed to serialize or validate.
//     Fatal to the whole run, nothing partial is written.
var (
	ErrInput        = errors.New("invalid input")
	ErrHistoryFetch = errors.New("history fetch failed")
	ErrNotFound     = errors.New("history not found")
	ErrInvariant    = errors.New("partition invariant violated")
	ErrEncode       = errors.New("config encode failed")
)

// Warnings collects non-fatal conditions observed during a run so callers
// can surface them without failing the build.
type Warnings []string

// Addf appends a formatted warning.
func (w *Warnings) Addf(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

// Merge appends all warnings from other.
func (w *Warnings) Merge(other Warnings) {
	*w = append(*w, other...)
}
