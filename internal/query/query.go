package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opentsdb-pg/tsdbadapter/internal/aggregate"
	"github.com/opentsdb-pg/tsdbadapter/internal/downsample"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/rate"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagfilter"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagsetcache"
	"github.com/opentsdb-pg/tsdbadapter/internal/tsparse"
)

// Emit is called once per series a query produces. The HTTP handler
// implements it by writing one more element of a streamed JSON array,
// so the pipeline never has to buffer every series in memory at once
// (§9: "implementers should back-pressure through the HTTP writer
// rather than buffering all series").
type Emit func(model.QueryResultDto) error

// Pipeline runs the full read path described in §4.9.
type Pipeline struct {
	db      *sql.DB
	tagsets *tagsetcache.Cache

	metricIDGroup singleflight.Group
}

// New builds a Pipeline over db and the shared tagset cache.
func New(db *sql.DB, tagsets *tagsetcache.Cache) *Pipeline {
	return &Pipeline{db: db, tagsets: tagsets}
}

// Execute runs every subquery in dto and streams results to emit. A
// canceled ctx stops the loop promptly; already-emitted series are not
// retracted.
func (p *Pipeline) Execute(ctx context.Context, dto model.QueryDto, emit Emit) error {
	now := time.Now()
	start, err := tsparse.ParseTimeSpec(dto.Start, now)
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	end := now
	if dto.End != "" {
		end, err = tsparse.ParseTimeSpec(dto.End, now)
		if err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}
	}

	for _, part := range dto.Queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runSubQuery(ctx, start, end, part, emit); err != nil {
			return fmt.Errorf("metric %q: %w", part.Metric, err)
		}
	}
	return nil
}

func (p *Pipeline) runSubQuery(ctx context.Context, start, end time.Time, part model.QueryPartDto, emit Emit) error {
	filters, err := BuildFilters(part)
	if err != nil {
		return err
	}

	tagsets := p.tagsets.GetTagsets([]string{part.Metric}, filters, part.ExplicitTags)
	if len(tagsets) == 0 {
		return nil
	}

	metricID, err := p.resolveMetricID(ctx, part.Metric)
	if err != nil {
		return err
	}

	queryStart := start
	if part.Rate {
		queryStart = start.Add(-time.Hour)
	}

	ids := make([]model.TagsetID, 0, len(tagsets))
	for id := range tagsets {
		ids = append(ids, id)
	}

	var spec *downsample.Spec
	if part.Downsample != "" {
		s, err := downsample.ParseSpec(part.Downsample)
		if err != nil {
			return err
		}
		spec = &s
	}

	rows, err := p.fetchRows(ctx, metricID, ids, queryStart, end, spec)
	if err != nil {
		return err
	}

	fill := downsample.FillNone
	if spec != nil {
		fill = spec.Fill
	}

	aggKind := aggregate.Kind(part.Aggregator)
	if part.Aggregator == "" || part.Aggregator == string(aggregate.KindNone) {
		return p.emitPerSeries(ctx, rows, tagsets, part, queryStart, fill, emit)
	}
	if spec == nil {
		// No downsample was requested, so there is no SQL-level bucket
		// width to group by; an aggregator still needs one bucket to
		// combine into, so the whole query window collapses to a single
		// bucket keyed on the original (pre-rate-widening) start.
		collapseToSingleBucket(rows, start)
	}
	return p.emitGrouped(ctx, rows, tagsets, filters, aggKind, part, queryStart, fill, emit)
}

// emitGrouped implements §4.9 step 6: build the group lookup, fold every
// row into its (group, bucket) aggregator, then emit one series per
// group with rate conversion applied if requested.
func (p *Pipeline) emitGrouped(ctx context.Context, rows []point, tagsets map[model.TagsetID]model.Tags, filters []*tagfilter.Filter, aggKind aggregate.Kind, part model.QueryPartDto, queryStart time.Time, fill downsample.FillPolicy, emit Emit) error {
	byKeys := groupByKeys(filters)
	gl := buildGroupLookup(tagsets, byKeys, aggKind)

	for _, r := range rows {
		agg := gl.aggregatorFor(r.tagsetID, r.bucket.Unix())
		if agg == nil {
			continue
		}
		agg.Add(r.value, r.ok)
	}

	keys := make([]string, 0, len(gl.groups))
	for k := range gl.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		g := gl.groups[key]

		buckets := make([]int64, 0, len(g.aggsByBucket))
		for b := range g.aggsByBucket {
			buckets = append(buckets, b)
		}
		sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

		dps := make(model.DataPointsMap, len(buckets))
		var conv *rate.Converter
		if part.Rate {
			conv = rate.New(rateOptions(part))
		}
		for _, b := range buckets {
			v, ok := g.aggsByBucket[b].Result()
			fv, fok := downsample.ApplyFill(fill, v, ok)
			if !fok {
				continue
			}
			if part.Rate {
				if numeric, isNum := fv.(float64); isNum {
					rv, emitPoint := conv.TryCalc(time.Unix(b, 0), numeric, queryStart)
					if emitPoint {
						dps[fmt.Sprintf("%d", b)] = rv
					}
					continue
				}
			}
			dps[fmt.Sprintf("%d", b)] = fv
		}

		if err := emit(model.QueryResultDto{
			Metric:        part.Metric,
			Tags:          g.tags,
			AggregateTags: aggregateTagKeys(tagsets, g),
			Dps:           dps,
		}); err != nil {
			return err
		}
	}
	return nil
}

// emitPerSeries implements §4.9 step 7: segment rows by tagset and emit
// each as its own series, applying rate conversion per-segment.
func (p *Pipeline) emitPerSeries(ctx context.Context, rows []point, tagsets map[model.TagsetID]model.Tags, part model.QueryPartDto, queryStart time.Time, fill downsample.FillPolicy, emit Emit) error {
	var cur model.TagsetID
	var haveCur bool
	var dps model.DataPointsMap
	var conv *rate.Converter

	flush := func() error {
		if !haveCur {
			return nil
		}
		tags, ok := tagsets[cur]
		if !ok {
			// Consistent with §9's "skip unknown" rule for tagsetIds no
			// longer known to the cache.
			return nil
		}
		return emit(model.QueryResultDto{
			Metric:        part.Metric,
			Tags:          tags,
			AggregateTags: []string{},
			Dps:           dps,
		})
	}

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !haveCur || r.tagsetID != cur {
			if err := flush(); err != nil {
				return err
			}
			cur = r.tagsetID
			haveCur = true
			dps = model.DataPointsMap{}
			conv = nil
			if part.Rate {
				conv = rate.New(rateOptions(part))
			}
		}

		fv, fok := downsample.ApplyFill(fill, r.value, r.ok)
		if !fok {
			continue
		}
		if part.Rate {
			if numeric, isNum := fv.(float64); isNum {
				rv, emitPoint := conv.TryCalc(r.bucket, numeric, queryStart)
				if emitPoint {
					dps[fmt.Sprintf("%d", r.bucket.Unix())] = rv
				}
				continue
			}
		}
		dps[fmt.Sprintf("%d", r.bucket.Unix())] = fv
	}
	return flush()
}

// collapseToSingleBucket rewrites every row's bucket to bucket in
// place, so a downstream groupLookup folds the whole result set into
// one time bucket per group instead of one per distinct raw timestamp.
func collapseToSingleBucket(rows []point, bucket time.Time) {
	for i := range rows {
		rows[i].bucket = bucket
	}
}

func rateOptions(part model.QueryPartDto) rate.Options {
	if part.RateOptions == nil {
		return rate.Options{}
	}
	return rate.Options{
		Counter:    part.RateOptions.Counter,
		CounterMax: part.RateOptions.CounterMax,
		DropResets: part.RateOptions.DropResets,
	}
}

// resolveMetricID looks up a metric's id, collapsing concurrent lookups
// for the same name (a query with many sub-queries on one metric, or
// many simultaneous requests at startup) onto a single DB round trip.
func (p *Pipeline) resolveMetricID(ctx context.Context, name string) (model.MetricID, error) {
	v, err, _ := p.metricIDGroup.Do(name, func() (interface{}, error) {
		var id model.MetricID
		err := p.db.QueryRowContext(ctx, `SELECT id FROM metric WHERE name = $1`, name).Scan(&id)
		return id, err
	})
	if err != nil {
		return 0, err
	}
	return v.(model.MetricID), nil
}

// aggregateTagKeys lists the tag keys that varied across a group's
// members and were folded away by aggregation — every key seen on any
// member but absent from the group's own (intersected) tags.
func aggregateTagKeys(tagsets map[model.TagsetID]model.Tags, g *group) []string {
	seen := make(map[string]struct{})
	for _, id := range g.members {
		for k := range tagsets[id] {
			if _, inGroup := g.tags[k]; !inGroup {
				seen[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
