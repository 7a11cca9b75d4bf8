package history

// This file contains the local snapshot cache for history responses, used
// for offline runs and as a fallback when the stats service is unreachable.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/taskgen/taskgen/model"
)

// Cache stores one JSON snapshot of history records per (project, variant,
// suite) under a root directory.
type Cache struct {
	root   string
	logger zerolog.Logger
}

// NewCache returns a cache rooted at dir. The directory is created on the
// first Store.
func NewCache(logger zerolog.Logger, dir string) *Cache {
	return &Cache{root: dir, logger: logger}
}

type snapshot struct {
	Project string                `json:"project"`
	Variant string                `json:"variant"`
	Suite   string                `json:"suite"`
	Records []model.HistoryRecord `json:"records"`
}

func (c *Cache) path(q Query) string {
	name := fmt.Sprintf("%s_%s_%s.json", q.Project, q.Variant, q.Suite)
	return filepath.Join(c.root, name)
}

// Load reads the last stored snapshot for q.
func (c *Cache) Load(q Query) ([]model.HistoryRecord, error) {
	data, err := os.ReadFile(c.path(q))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no cached history for suite %s", model.ErrNotFound, q.Suite)
		}
		return nil, fmt.Errorf("reading history snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing history snapshot %s: %w", c.path(q), err)
	}
	return snap.Records, nil
}

// Store writes records as the snapshot for q, replacing any previous one.
func (c *Cache) Store(q Query, records []model.HistoryRecord) error {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return fmt.Errorf("creating history cache dir: %w", err)
	}
	snap := snapshot{Project: q.Project, Variant: q.Variant, Suite: q.Suite, Records: records}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(q), data, 0o644)
}

// CachingProvider wraps a Provider with read-through snapshot caching:
// successful fetches refresh the snapshot, failed fetches fall back to the
// last snapshot before giving up.
type CachingProvider struct {
	Inner  Provider
	Cache  *Cache
	Logger zerolog.Logger
}

// Fetch implements Provider.
func (p *CachingProvider) Fetch(ctx context.Context, q Query) ([]model.HistoryRecord, error) {
	records, err := p.Inner.Fetch(ctx, q)
	if err == nil {
		if storeErr := p.Cache.Store(q, records); storeErr != nil {
			p.Logger.Warn().Err(storeErr).Str("suite", q.Suite).Msg("failed to update history snapshot")
		}
		return records, nil
	}

	cached, cacheErr := p.Cache.Load(q)
	if cacheErr != nil {
		return nil, err
	}
	p.Logger.Warn().Err(err).Str("suite", q.Suite).
		Int("records", len(cached)).
		Msg("history fetch failed, using cached snapshot")
	return cached, nil
}

// CacheOnlyProvider serves history exclusively from local snapshots, for
// offline runs.
type CacheOnlyProvider struct {
	Cache *Cache
}

// Fetch implements Provider.
func (p *CacheOnlyProvider) Fetch(_ context.Context, q Query) ([]model.HistoryRecord, error) {
	return p.Cache.Load(q)
}
