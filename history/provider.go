// Package history supplies historical per-test execution records from the
// stats service, with a local snapshot cache for offline use and fetch
// fallback.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/taskgen/taskgen/model"
)

// Query identifies one history request.
type Query struct {
	Project  string
	Variant  string
	Suite    string
	Lookback time.Duration
}

// Provider fetches historical execution records for a suite.
type Provider interface {
	Fetch(ctx context.Context, q Query) ([]model.HistoryRecord, error)
}

const (
	defaultFetchTimeout = 30 * time.Second
	fetchAttempts       = 3
	fetchRetryDelay     = 500 * time.Millisecond
)

// StatsClient is the HTTP implementation of Provider. Construct one at
// startup and share it across fetches; it carries the transport and
// credentials so none of that lives in ambient globals.
type StatsClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

// NewStatsClient returns a client for the stats service at baseURL. A zero
// timeout falls back to a 30 second default.
func NewStatsClient(logger zerolog.Logger, baseURL, token string, timeout time.Duration) *StatsClient {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &StatsClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// statRecord is the wire form of one history record. Durations come as
// float seconds; timestamps as RFC 3339 strings. Unparsable timestamps are
// passed through as zero values for the estimator to reject per record
// instead of failing the whole response.
type statRecord struct {
	TestID    string  `json:"test_id"`
	Duration  float64 `json:"duration"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
}

type statsResponse struct {
	Records []statRecord `json:"records"`
}

// Fetch retrieves the execution records for q, retrying transient failures.
// Not-found and other HTTP errors are reported as ErrHistoryFetch so callers
// can fall back to cold-start estimation.
func (c *StatsClient) Fetch(ctx context.Context, q Query) ([]model.HistoryRecord, error) {
	u, err := c.queryURL(q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrHistoryFetch, err)
	}

	var records []model.HistoryRecord
	err = retry.Do(func() error {
		var fetchErr error
		records, fetchErr = c.fetchOnce(ctx, u)
		return fetchErr
	},
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.Attempts(fetchAttempts),
		retry.Delay(fetchRetryDelay),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, model.ErrNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Err(err).Uint("attempt", n+1).
				Str("suite", q.Suite).Msg("retrying history fetch")
		}),
	)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: suite %s: %v", model.ErrHistoryFetch, q.Suite, err)
	}
	return records, nil
}

func (c *StatsClient) queryURL(q Query) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("projects", q.Project, "test_stats")
	vals := url.Values{}
	vals.Set("variant", q.Variant)
	vals.Set("suite", q.Suite)
	if q.Lookback > 0 {
		vals.Set("after", time.Now().Add(-q.Lookback).UTC().Format("2006-01-02"))
	}
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

func (c *StatsClient) fetchOnce(ctx context.Context, u string) ([]model.HistoryRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, u)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("stats service returned %s", resp.Status)
	}

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding stats response: %w", err)
	}
	return decodeRecords(body.Records), nil
}

func decodeRecords(raw []statRecord) []model.HistoryRecord {
	records := make([]model.HistoryRecord, 0, len(raw))
	for _, r := range raw {
		rec := model.HistoryRecord{
			TestID:   r.TestID,
			Duration: time.Duration(r.Duration * float64(time.Second)),
			Status:   model.Status(r.Status),
		}
		if ts, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			rec.Timestamp = ts
		}
		records = append(records, rec)
	}
	return records
}
