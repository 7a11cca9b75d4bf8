// Package estimate turns raw, possibly incomplete execution history into one
// runtime estimate per test.
package estimate

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskgen/taskgen/model"
)

// DefaultSamples is the number of most recent passing runs averaged per
// test. Small on purpose: it tracks recent behavior while smoothing a single
// noisy run.
const DefaultSamples = 2

// minEstimate is the floor applied to every estimate so zero-duration
// history can never produce a weightless test.
const minEstimate = time.Millisecond

// defaultColdStart is used only when no test in the suite has any usable
// history, so there is no median to derive the cold-start placeholder from.
const defaultColdStart = time.Minute

// Estimator computes per-test runtime estimates from history records.
type Estimator struct {
	// Samples is the number of most recent passing runs to average.
	// Zero or negative falls back to DefaultSamples.
	Samples int
	Logger  zerolog.Logger
}

// Estimate maps every test path in tests to a positive runtime estimate.
//
// Records are grouped by test, failed and malformed entries are dropped, and
// the most recent Samples passing durations are averaged. Hook executions
// (reported as "test:hook") are averaged separately and added on top of
// their owning test, since the orchestrator charges hook time to the task
// running the test. Tests without usable history receive the median estimate
// of the tests that have some, so new tests are weighted like a typical test
// of this suite rather than a fixed constant.
func (e *Estimator) Estimate(tests []string, records []model.HistoryRecord) (map[string]time.Duration, model.Warnings) {
	samples := e.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	var warnings model.Warnings
	testSamples := make(map[string][]model.HistoryRecord)
	hookSamples := make(map[string]map[string][]model.HistoryRecord)

	for _, rec := range records {
		if rec.Duration < 0 {
			warnings.Addf("skipping history record for %s: negative duration %v", rec.TestID, rec.Duration)
			continue
		}
		if rec.Timestamp.IsZero() {
			warnings.Addf("skipping history record for %s: missing or unparsable timestamp", rec.TestID)
			continue
		}
		if rec.Status != model.StatusPass {
			continue
		}
		if testID, hook, isHook := splitHookID(rec.TestID); isHook {
			key := model.TestKey(testID)
			if hookSamples[key] == nil {
				hookSamples[key] = make(map[string][]model.HistoryRecord)
			}
			hookSamples[key][hook] = append(hookSamples[key][hook], rec)
			continue
		}
		key := model.TestKey(rec.TestID)
		testSamples[key] = append(testSamples[key], rec)
	}

	estimates := make(map[string]time.Duration, len(tests))
	var known []time.Duration
	var cold []string
	for _, path := range tests {
		key := model.TestKey(path)
		recs := testSamples[key]
		if len(recs) == 0 {
			cold = append(cold, path)
			continue
		}
		est := averageRecent(recs, samples)
		for _, hookRecs := range hookSamples[key] {
			est += averageRecent(hookRecs, samples)
		}
		if est < minEstimate {
			est = minEstimate
		}
		estimates[path] = est
		known = append(known, est)
	}

	fallback := median(known)
	if fallback == 0 {
		fallback = defaultColdStart
	}
	for _, path := range cold {
		estimates[path] = fallback
	}
	if len(cold) > 0 {
		e.Logger.Debug().
			Int("tests", len(cold)).
			Dur("estimate", fallback).
			Msg("applied cold-start estimate")
	}
	return estimates, warnings
}

// averageRecent averages the newest n durations of recs.
func averageRecent(recs []model.HistoryRecord, n int) time.Duration {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
	if n > len(recs) {
		n = len(recs)
	}
	var sum time.Duration
	for _, rec := range recs[:n] {
		sum += rec.Duration
	}
	return sum / time.Duration(n)
}

// median returns the middle value of ds, averaging the two middle values for
// even lengths, or 0 for an empty slice.
func median(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// splitHookID recognizes the "test:hook" form history records use for
// fixture hook executions.
func splitHookID(testID string) (test, hook string, ok bool) {
	i := strings.IndexByte(testID, ':')
	if i < 0 {
		return testID, "", false
	}
	return testID[:i], testID[i+1:], true
}
