// Package ingest implements the C5 write path from §4.5: resolve
// metric/tagset identifiers (via the C1 caches, falling back to
// deadlock-avoidant batch upserts), then insert points in an order safe
// against the partial unique index, and finally revalidate the caches.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/opentsdb-pg/tsdbadapter/internal/apperr"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/tsparse"
	"github.com/opentsdb-pg/tsdbadapter/internal/ttlcache"
)

// Pipeline owns the two C1 caches used to skip a DB round trip for
// already-known metrics and tagsets.
type Pipeline struct {
	db          *sql.DB
	metricCache *ttlcache.Cache[string, model.MetricID]
	tagsetCache *ttlcache.Cache[model.TagsetKey, model.TagsetID]
}

// New builds a Pipeline backed by db, with cache capacities and TTL
// taken from configuration (§6.3's INSERT_METRIC_CACHE_SIZE,
// INSERT_TAGSET_CACHE_SIZE, and the shared cache TTL).
func New(db *sql.DB, metricCacheSize, tagsetCacheSize int, ttl time.Duration) *Pipeline {
	return &Pipeline{
		db:          db,
		metricCache: ttlcache.New[string, model.MetricID](metricCacheSize, ttl),
		tagsetCache: ttlcache.New[model.TagsetKey, model.TagsetID](tagsetCacheSize, ttl),
	}
}

type resolvedPoint struct {
	metricID model.MetricID
	tagsetID model.TagsetID
	time     time.Time
	value    float64
}

// Write implements the full §4.5 algorithm for one batch. Any failure
// aborts the whole batch: no partial writes are surfaced, and the
// caches are left untouched so a retry re-resolves from the DB.
func (p *Pipeline) Write(ctx context.Context, points []model.DataPoint) (model.PutStats, error) {
	start := time.Now()
	if len(points) == 0 {
		return model.PutStats{}, nil
	}

	resolved := make([]resolvedPoint, len(points))
	var oldestTs time.Time
	metricMisses := make(map[string]struct{})
	tagsetMisses := make(map[model.TagsetKey]model.Tags)

	for i, pt := range points {
		t := tsparse.NumberToTime(float64(pt.Timestamp))
		if oldestTs.IsZero() || t.Before(oldestTs) {
			oldestTs = t
		}

		resolved[i].time = t
		resolved[i].value = pt.Value

		if id, ok := p.metricCache.TryGet(pt.Metric); ok {
			resolved[i].metricID = id
		} else {
			metricMisses[pt.Metric] = struct{}{}
		}

		key := model.NewTagsetKey(pt.Tags)
		if id, ok := p.tagsetCache.TryGet(key); ok {
			resolved[i].tagsetID = id
		} else {
			tagsetMisses[key] = pt.Tags
		}
	}

	resolvedMetrics, err := p.resolveMetrics(ctx, metricMisses)
	if err != nil {
		return model.PutStats{}, apperr.Server(fmt.Errorf("resolve metrics: %w", err))
	}
	resolvedTagsets, err := p.resolveTagsets(ctx, tagsetMisses)
	if err != nil {
		return model.PutStats{}, apperr.Server(fmt.Errorf("resolve tagsets: %w", err))
	}

	finalMetricIDs := make(map[string]model.MetricID, len(points))
	finalTagsetIDs := make(map[model.TagsetKey]model.TagsetID, len(points))
	for i, pt := range points {
		if resolved[i].metricID == 0 {
			resolved[i].metricID = resolvedMetrics[pt.Metric]
		}
		key := model.NewTagsetKey(pt.Tags)
		if resolved[i].tagsetID == 0 {
			resolved[i].tagsetID = resolvedTagsets[key]
		}
		finalMetricIDs[pt.Metric] = resolved[i].metricID
		finalTagsetIDs[key] = resolved[i].tagsetID
	}

	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].metricID != resolved[j].metricID {
			return resolved[i].metricID < resolved[j].metricID
		}
		if resolved[i].tagsetID != resolved[j].tagsetID {
			return resolved[i].tagsetID < resolved[j].tagsetID
		}
		return resolved[i].time.Before(resolved[j].time)
	})

	if err := p.insertPoints(ctx, resolved); err != nil {
		return model.PutStats{}, apperr.Server(fmt.Errorf("insert points: %w", err))
	}

	for metric, id := range resolvedMetrics {
		p.metricCache.AddOrRevalidate(metric, id, oldestTs)
	}
	for key, id := range resolvedTagsets {
		p.tagsetCache.AddOrRevalidate(key, id, oldestTs)
	}
	// Revalidate cache hits too, so a long-lived cache entry's staleness
	// clock keeps resetting as long as it's still being used. Looked up by
	// name/key from finalMetricIDs/finalTagsetIDs, not by slice index:
	// resolved was just sorted, so its order no longer lines up with points.
	for metric := range finalMetricIDs {
		if _, wasMiss := metricMisses[metric]; !wasMiss {
			p.metricCache.AddOrRevalidate(metric, finalMetricIDs[metric], oldestTs)
		}
	}
	for key := range finalTagsetIDs {
		if _, wasMiss := tagsetMisses[key]; !wasMiss {
			p.tagsetCache.AddOrRevalidate(key, finalTagsetIDs[key], oldestTs)
		}
	}

	elapsed := time.Since(start)
	n := len(points)
	stats := model.PutStats{
		PointsWritten: int64(n),
		WriteTimeMs:   elapsed.Milliseconds(),
		MetricMisses:  len(metricMisses),
		TagsetMisses:  len(tagsetMisses),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.Kdps = float64(n) / 1000 / secs
	}
	if n > 0 {
		stats.MetricMissRate = float64(len(metricMisses)) / float64(n)
		stats.TagsetMissRate = float64(len(tagsetMisses)) / float64(n)
	}
	return stats, nil
}

// resolveMetrics upserts the missing names one statement at a time, in
// ascending name order (§4.5 step 2). The no-op "DO UPDATE SET name =
// EXCLUDED.name" makes RETURNING yield the id of rows that already
// existed, not just of newly inserted ones.
func (p *Pipeline) resolveMetrics(ctx context.Context, misses map[string]struct{}) (map[string]model.MetricID, error) {
	out := make(map[string]model.MetricID, len(misses))
	if len(misses) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(misses))
	for name := range misses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var id model.MetricID
		err := p.db.QueryRowContext(ctx, `
			INSERT INTO metric (name, created) VALUES ($1, now())
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, name).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert metric %q: %w", name, err)
		}
		out[name] = id
	}
	return out, nil
}

// resolveTagsets mirrors resolveMetrics, keyed by the tagset's canonical
// JSON form so identical tag sets always collide on the same row.
func (p *Pipeline) resolveTagsets(ctx context.Context, misses map[model.TagsetKey]model.Tags) (map[model.TagsetKey]model.TagsetID, error) {
	out := make(map[model.TagsetKey]model.TagsetID, len(misses))
	if len(misses) == 0 {
		return out, nil
	}
	keys := make([]model.TagsetKey, 0, len(misses))
	for k := range misses {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		var id model.TagsetID
		err := p.db.QueryRowContext(ctx, `
			INSERT INTO tagset (tags, created) VALUES ($1::jsonb, now())
			ON CONFLICT (tags) DO UPDATE SET tags = EXCLUDED.tags
			RETURNING id
		`, key.CanonicalJSON()).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert tagset %s: %w", key.CanonicalJSON(), err)
		}
		out[key] = id
	}
	return out, nil
}

// insertPoints writes the fully-resolved, pre-sorted batch. ON CONFLICT
// DO NOTHING makes concurrent duplicate inserts for the same
// (metric_id, tagset_id, time) converge on whichever write landed first.
func (p *Pipeline) insertPoints(ctx context.Context, points []resolvedPoint) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO point (metric_id, tagset_id, time, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, pt := range points {
		if _, err := stmt.ExecContext(ctx, pt.metricID, pt.tagsetID, pt.time, pt.value); err != nil {
			return err
		}
	}
	return tx.Commit()
}
