// Package split distributes weighted tests across a bounded number of
// sub-suites so their expected runtimes come out as equal as possible.
//
// The algorithm is longest-processing-time-first greedy bin packing: tests
// are placed heaviest first into the least-loaded bin that still has room.
// LPT keeps the worst-case makespan within 4/3 of optimal and, with the
// tie-break rules below, is fully deterministic, which downstream diffing
// and caching of the generated config relies on.
package split

import (
	"fmt"
	"sort"
	"time"

	"github.com/taskgen/taskgen/model"
)

// WeightedTest is one test plus its runtime estimate, ready for placement.
type WeightedTest struct {
	Path     string
	Estimate time.Duration
}

// Constraints bound a partition. MaxSubSuites is the only hard limit; the
// runtime and test-count caps are soft and get relaxed before any test is
// dropped. Zero means unlimited for the soft caps.
type Constraints struct {
	MaxSubSuites int
	MaxRuntime   time.Duration
	MaxTests     int
}

// Bin is one sub-suite under construction: the assigned tests and their
// cumulative estimated runtime.
type Bin struct {
	Tests   []WeightedTest
	Runtime time.Duration
}

// Split partitions tests into at most c.MaxSubSuites bins.
//
// Every test lands in exactly one bin. A bin's runtime only exceeds
// c.MaxRuntime when it holds a single test whose own estimate is already
// above the cap, or when the hard bin ceiling forced the soft limits to be
// relaxed. An empty input yields zero bins.
func Split(tests []WeightedTest, c Constraints) ([]Bin, error) {
	if len(tests) == 0 {
		return nil, nil
	}
	maxBins := c.MaxSubSuites
	if maxBins < 1 {
		maxBins = 1
	}

	// The balance objective needs a per-bin runtime target even when the
	// caller configured none: spreading the total estimated runtime evenly
	// across the available bins. A configured cap tighter than that target
	// takes precedence; one looser than it would defeat balancing and is
	// ignored for placement (it can still be reported on, the bins stay
	// under the tighter target anyway).
	target := balanceTarget(tests, maxBins)
	if c.MaxRuntime > 0 && c.MaxRuntime < target {
		target = c.MaxRuntime
	}
	c.MaxRuntime = target

	// Heaviest first; ties fall back to the test's position in the suite
	// definition so identical inputs always produce identical partitions.
	order := make([]int, len(tests))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ta, tb := tests[order[a]], tests[order[b]]
		if ta.Estimate != tb.Estimate {
			return ta.Estimate > tb.Estimate
		}
		return order[a] < order[b]
	})

	bins := make([]Bin, 0, maxBins)
	for _, idx := range order {
		t := tests[idx]
		target := pickBin(bins, t, c)
		if target < 0 {
			if len(bins) < maxBins {
				bins = append(bins, Bin{})
				target = len(bins) - 1
			} else {
				// At the hard ceiling: relax the soft limits and
				// place the test in the least-loaded bin.
				target = leastLoaded(bins)
			}
		}
		bins[target].Tests = append(bins[target].Tests, t)
		bins[target].Runtime += t.Estimate
	}

	if err := checkCover(tests, bins); err != nil {
		return nil, err
	}
	return bins, nil
}

// balanceTarget is the ideal per-bin runtime when the total is spread across
// maxBins bins, rounded up so the division error never forces a spurious
// extra bin.
func balanceTarget(tests []WeightedTest, maxBins int) time.Duration {
	var total time.Duration
	for _, t := range tests {
		total += t.Estimate
	}
	return (total + time.Duration(maxBins) - 1) / time.Duration(maxBins)
}

// pickBin returns the index of the least-loaded bin that can take t without
// breaking the soft limits, or -1 when none can. Equal loads resolve to the
// earliest-created bin: the strict < comparison keeps the first match.
func pickBin(bins []Bin, t WeightedTest, c Constraints) int {
	best := -1
	for i := range bins {
		if c.MaxTests > 0 && len(bins[i].Tests) >= c.MaxTests {
			continue
		}
		if c.MaxRuntime > 0 && bins[i].Runtime+t.Estimate > c.MaxRuntime {
			continue
		}
		if best < 0 || bins[i].Runtime < bins[best].Runtime {
			best = i
		}
	}
	return best
}

func leastLoaded(bins []Bin) int {
	best := 0
	for i := 1; i < len(bins); i++ {
		if bins[i].Runtime < bins[best].Runtime {
			best = i
		}
	}
	return best
}

// checkCover verifies the exact-cover invariant: every input test appears in
// exactly one bin. A violation is a bug in the placement loop, never a
// property of the input.
func checkCover(tests []WeightedTest, bins []Bin) error {
	seen := make(map[string]int, len(tests))
	total := 0
	for _, b := range bins {
		for _, t := range b.Tests {
			seen[t.Path]++
			total++
		}
	}
	if total != len(tests) {
		return fmt.Errorf("%w: assigned %d tests, expected %d", model.ErrInvariant, total, len(tests))
	}
	for _, t := range tests {
		if n := seen[t.Path]; n != 1 {
			return fmt.Errorf("%w: test %s assigned %d times", model.ErrInvariant, t.Path, n)
		}
	}
	return nil
}
