// Package tagsetcache implements the in-memory tagset cache service from
// §4.4 (C4): an incrementally-refreshed mirror of the tagset and
// time_series tables, plus the tag index, queried by the query pipeline
// without a DB round trip per request.
package tagsetcache

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagfilter"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagindex"
)

var tagsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache holds the state described in §4.4: tagsetById, tagsetIdsByMetric,
// the tag index, and the two high-water marks. A single sync.RWMutex (not
// reentrant) serializes Refresh and Prune; GetTagsets takes a read lock so it can
// run concurrently with itself but never overlaps a writer.
type Cache struct {
	db *sql.DB

	mu               sync.RWMutex
	tagsetByID       map[model.TagsetID]model.Tags
	tagsetIDsByMetric map[string][]model.TagsetID
	tagIndex         *tagindex.TagIndex

	tagsetHWM     time.Time
	timeSeriesHWM time.Time

	lastSuccessfulUpdate time.Time
	hasRefreshedOnce     bool
}

// New creates an empty Cache backed by db.
func New(db *sql.DB) *Cache {
	return &Cache{
		db:                db,
		tagsetByID:        make(map[model.TagsetID]model.Tags),
		tagsetIDsByMetric: make(map[string][]model.TagsetID),
		tagIndex:          tagindex.New(),
	}
}

// Metrics returns every metric name currently known to the cache,
// sorted, for /api/suggest?type=metrics and /api/search/lookup's
// wildcard metric matching.
func (c *Cache) Metrics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tagsetIDsByMetric))
	for m := range c.tagsetIDsByMetric {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// TagKeys returns every tag key seen across all tagsets, sorted, for
// /api/suggest?type=tagk.
func (c *Cache) TagKeys() []string {
	return c.tagIndex.TagKeys()
}

// TagValues returns every value seen for key, sorted, for
// /api/suggest/tagValues/{tagKey}.
func (c *Cache) TagValues(key string) []string {
	return c.tagIndex.TagValuesFor(key)
}

// AllTagValues returns the flat union of every tag value across every
// key, for /api/suggest?type=tagv with no key argument.
func (c *Cache) AllTagValues() []string {
	return c.tagIndex.AllTagValues()
}

// LastSuccessfulUpdate reports when Refresh last completed, for the
// health-check staleness test in §6.2 (`/api/health`).
func (c *Cache) LastSuccessfulUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccessfulUpdate
}

// Refresh runs one incremental cycle per §4.4.1. It is safe to call
// from the periodic scheduler; the high-water marks advance
// incrementally per row so a mid-refresh cancellation leaves the next
// cycle resuming cleanly rather than re-scanning from scratch or
// skipping rows.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshTagsets(ctx); err != nil {
		return err
	}
	if err := c.refreshTimeSeries(ctx); err != nil {
		return err
	}
	c.lastSuccessfulUpdate = time.Now()
	c.hasRefreshedOnce = true
	return nil
}

func (c *Cache) refreshTagsets(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, tags, created FROM tagset WHERE created > $1 ORDER BY created
	`, c.tagsetHWM)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id model.TagsetID
		var raw []byte
		var created time.Time
		if err := rows.Scan(&id, &raw, &created); err != nil {
			return err
		}
		var tags model.Tags
		if err := tagsJSON.Unmarshal(raw, &tags); err != nil {
			return err
		}
		c.tagsetByID[id] = tags
		for k, v := range tags {
			c.tagIndex.AddTag(k, v, id)
		}
		c.tagsetHWM = created
	}
	return rows.Err()
}

func (c *Cache) refreshTimeSeries(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `
		SELECT m.name, ts.tagset_id, ts.created
		FROM time_series ts
		JOIN metric m ON m.id = ts.metric_id
		WHERE ts.created > $1
		ORDER BY ts.created
	`, c.timeSeriesHWM)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var metricName string
		var tagsetID model.TagsetID
		var created time.Time
		if err := rows.Scan(&metricName, &tagsetID, &created); err != nil {
			return err
		}
		c.tagsetIDsByMetric[metricName] = append(c.tagsetIDsByMetric[metricName], tagsetID)
		c.timeSeriesHWM = created
	}
	return rows.Err()
}

// Prune reconciles the in-memory tagset set against the DB per §4.4.2.
// It only does anything after at least one successful Refresh, so a
// cold-started process never mistakes "haven't loaded yet" for
// "everything was deleted."
func (c *Cache) Prune(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasRefreshedOnce {
		return nil
	}

	rows, err := c.db.QueryContext(ctx, `SELECT id FROM tagset`)
	if err != nil {
		return err
	}
	live := make(map[model.TagsetID]struct{})
	for rows.Next() {
		var id model.TagsetID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		live[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	var removed int
	for id, tags := range c.tagsetByID {
		if _, ok := live[id]; ok {
			continue
		}
		delete(c.tagsetByID, id)
		c.tagIndex.RemoveTagset(id, tags, false)
		removed++
	}
	if removed > 0 {
		c.tagIndex.RebuildTagValues()
		c.removeFromMetricIndex(live)
		logging.Info("tagsetcache: pruned %d stale tagsets", removed)
	}
	return nil
}

// removeFromMetricIndex drops tagset ids no longer live from every
// metric's candidate list. Called with the write lock already held.
func (c *Cache) removeFromMetricIndex(live map[model.TagsetID]struct{}) {
	for metric, ids := range c.tagsetIDsByMetric {
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := live[id]; ok {
				kept = append(kept, id)
			}
		}
		c.tagsetIDsByMetric[metric] = kept
	}
}

// GetTagsets implements the narrowing algorithm from §4.4.3.
func (c *Cache) GetTagsets(metrics []string, filters []*tagfilter.Filter, explicitTags bool) map[model.TagsetID]model.Tags {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(filters) == 0 && len(metrics) == 0 {
		return c.fullSnapshotLocked()
	}

	candidates := c.unionCandidatesLocked(metrics)
	if len(candidates) == 0 {
		return map[model.TagsetID]model.Tags{}
	}

	if explicitTags {
		candidates = c.restrictExplicitTagsLocked(candidates, filters)
		if len(candidates) == 0 {
			return map[model.TagsetID]model.Tags{}
		}
	}

	ordered := make([]*tagfilter.Filter, len(filters))
	copy(ordered, filters)
	sort.SliceStable(ordered, func(i, j int) bool {
		return c.tagIndex.PossibleTagValueCount(ordered[i].Key) < c.tagIndex.PossibleTagValueCount(ordered[j].Key)
	})

	for _, f := range ordered {
		valueIndex, ok := c.tagIndex.TryGetTagValueIndex(f.Key)
		if !ok || len(valueIndex) == 0 {
			return map[model.TagsetID]model.Tags{}
		}

		if f.Kind != tagfilter.KindLiteralOr && len(valueIndex) > len(candidates) {
			candidates = backwardApply(candidates, c.tagsetByID, f)
		} else {
			candidates = forwardApply(candidates, valueIndex, f)
		}
		if len(candidates) == 0 {
			return map[model.TagsetID]model.Tags{}
		}
	}

	out := make(map[model.TagsetID]model.Tags, len(candidates))
	for id := range candidates {
		out[id] = c.tagsetByID[id]
	}
	return out
}

func (c *Cache) fullSnapshotLocked() map[model.TagsetID]model.Tags {
	out := make(map[model.TagsetID]model.Tags, len(c.tagsetByID))
	for id, tags := range c.tagsetByID {
		out[id] = tags
	}
	return out
}

func (c *Cache) unionCandidatesLocked(metrics []string) map[model.TagsetID]struct{} {
	candidates := make(map[model.TagsetID]struct{})
	for _, m := range metrics {
		for _, id := range c.tagsetIDsByMetric[m] {
			candidates[id] = struct{}{}
		}
	}
	return candidates
}

func (c *Cache) restrictExplicitTagsLocked(candidates map[model.TagsetID]struct{}, filters []*tagfilter.Filter) map[model.TagsetID]struct{} {
	wantKeys := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		wantKeys[f.Key] = struct{}{}
	}
	out := make(map[model.TagsetID]struct{})
	for id := range candidates {
		tags := c.tagsetByID[id]
		if len(tags) != len(wantKeys) {
			continue
		}
		match := true
		for k := range tags {
			if _, ok := wantKeys[k]; !ok {
				match = false
				break
			}
		}
		if match {
			out[id] = struct{}{}
		}
	}
	return out
}

// backwardApply evaluates f directly against each candidate's own tag
// value — cheaper than a forward union/intersect when the filter's
// value-space is larger than the remaining candidate set.
func backwardApply(candidates map[model.TagsetID]struct{}, tagsetByID map[model.TagsetID]model.Tags, f *tagfilter.Filter) map[model.TagsetID]struct{} {
	out := make(map[model.TagsetID]struct{}, len(candidates))
	for id := range candidates {
		v, ok := tagsetByID[id][f.Key]
		if ok && f.Matches(v) {
			out[id] = struct{}{}
		}
	}
	return out
}

// forwardApply computes the union of tagset ids across every value in
// valueIndex that satisfies f, then intersects with candidates.
func forwardApply(candidates map[model.TagsetID]struct{}, valueIndex map[string]map[model.TagsetID]struct{}, f *tagfilter.Filter) map[model.TagsetID]struct{} {
	matching := make(map[model.TagsetID]struct{})
	for v, ids := range valueIndex {
		if !f.Matches(v) {
			continue
		}
		for id := range ids {
			matching[id] = struct{}{}
		}
	}

	small, big := candidates, matching
	if len(matching) < len(candidates) {
		small, big = matching, candidates
	}
	out := make(map[model.TagsetID]struct{}, len(small))
	for id := range small {
		if _, ok := big[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
