package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskgen/taskgen/model"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func rec(id string, secs int, age time.Duration, status model.Status) model.HistoryRecord {
	return model.HistoryRecord{
		TestID:    id,
		Duration:  time.Duration(secs) * time.Second,
		Timestamp: t0.Add(-age),
		Status:    status,
	}
}

func TestEstimate_AveragesMostRecentSamples(t *testing.T) {
	e := &Estimator{Samples: 2}
	records := []model.HistoryRecord{
		rec("jstests/find.js", 10, 3*time.Hour, model.StatusPass),
		rec("jstests/find.js", 20, 2*time.Hour, model.StatusPass),
		rec("jstests/find.js", 100, 50*time.Hour, model.StatusPass), // old, excluded by K=2
	}
	got, warnings := e.Estimate([]string{"jstests/find.js"}, records)
	require.Empty(t, warnings)
	require.Equal(t, 15*time.Second, got["jstests/find.js"])
}

func TestEstimate_IgnoresFailedRuns(t *testing.T) {
	e := &Estimator{}
	records := []model.HistoryRecord{
		rec("a.js", 10, time.Hour, model.StatusPass),
		rec("a.js", 500, 30*time.Minute, model.StatusFail),
		rec("a.js", 10, 2*time.Hour, model.StatusPass),
	}
	got, warnings := e.Estimate([]string{"a.js"}, records)
	require.Empty(t, warnings)
	require.Equal(t, 10*time.Second, got["a.js"])
}

func TestEstimate_SkipsMalformedRecordsWithWarnings(t *testing.T) {
	e := &Estimator{}
	records := []model.HistoryRecord{
		{TestID: "a.js", Duration: -5 * time.Second, Timestamp: t0, Status: model.StatusPass},
		{TestID: "a.js", Duration: 5 * time.Second, Status: model.StatusPass}, // zero timestamp
		rec("a.js", 30, time.Hour, model.StatusPass),
	}
	got, warnings := e.Estimate([]string{"a.js"}, records)
	require.Len(t, warnings, 2)
	require.Equal(t, 30*time.Second, got["a.js"])
}

func TestEstimate_ColdStartUsesMedian(t *testing.T) {
	e := &Estimator{}
	records := []model.HistoryRecord{
		rec("a.js", 10, time.Hour, model.StatusPass),
		rec("b.js", 20, time.Hour, model.StatusPass),
		rec("c.js", 90, time.Hour, model.StatusPass),
	}
	got, _ := e.Estimate([]string{"a.js", "b.js", "c.js", "new.js"}, records)
	require.Equal(t, 20*time.Second, got["new.js"], "median of 10,20,90")
}

func TestEstimate_ColdStartWithoutAnyHistory(t *testing.T) {
	e := &Estimator{}
	got, _ := e.Estimate([]string{"a.js", "b.js"}, nil)
	require.Equal(t, defaultColdStart, got["a.js"])
	require.Equal(t, defaultColdStart, got["b.js"])
	for _, est := range got {
		require.Positive(t, est)
	}
}

func TestEstimate_FullCoverage(t *testing.T) {
	e := &Estimator{}
	tests := []string{"a.js", "b.js", "c.js", "d.js"}
	records := []model.HistoryRecord{rec("b.js", 42, time.Hour, model.StatusPass)}
	got, _ := e.Estimate(tests, records)
	require.Len(t, got, len(tests))
	for _, path := range tests {
		require.Positive(t, got[path], "every test must receive a positive estimate")
	}
}

func TestEstimate_HookRuntimeFoldedIntoTest(t *testing.T) {
	e := &Estimator{Samples: 2}
	records := []model.HistoryRecord{
		rec("core/find.js", 10, time.Hour, model.StatusPass),
		rec("core/find.js:CleanEveryN", 4, time.Hour, model.StatusPass),
		rec("core/find.js:CheckReplDBHash", 6, time.Hour, model.StatusPass),
		rec("core/other.js", 10, time.Hour, model.StatusPass),
	}
	got, _ := e.Estimate([]string{"core/find.js", "core/other.js"}, records)
	require.Equal(t, 20*time.Second, got["core/find.js"])
	require.Equal(t, 10*time.Second, got["core/other.js"])
}

func TestEstimate_MatchesHistoryByTestKey(t *testing.T) {
	// Suite lists file paths, history reports bare test names.
	e := &Estimator{}
	records := []model.HistoryRecord{rec("find", 30, time.Hour, model.StatusPass)}
	got, _ := e.Estimate([]string{"jstests/core/find.js"}, records)
	require.Equal(t, 30*time.Second, got["jstests/core/find.js"])
}

func TestEstimate_FlooredAtMinimum(t *testing.T) {
	e := &Estimator{}
	records := []model.HistoryRecord{rec("a.js", 0, time.Hour, model.StatusPass)}
	got, _ := e.Estimate([]string{"a.js"}, records)
	require.Equal(t, minEstimate, got["a.js"])
}

func TestMedian(t *testing.T) {
	require.Equal(t, time.Duration(0), median(nil))
	require.Equal(t, 5*time.Second, median([]time.Duration{5 * time.Second}))
	require.Equal(t, 15*time.Second, median([]time.Duration{10 * time.Second, 20 * time.Second}))
	require.Equal(t, 20*time.Second, median([]time.Duration{90 * time.Second, 10 * time.Second, 20 * time.Second}))
}
