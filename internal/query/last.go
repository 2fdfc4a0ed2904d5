package query

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/opentsdb-pg/tsdbadapter/internal/model"
)

// ExecuteLast implements POST /api/query/last: one most-recent-point
// lookup per sub-query, via a DISTINCT ON (tagset_id) ... ORDER BY
// tagset_id, time DESC query — the natural SQL shape for "last value
// per series" (SPEC_FULL supplemented feature).
func (p *Pipeline) ExecuteLast(ctx context.Context, dto model.LastQueryDto, emit func(model.LastQueryResultDto) error) error {
	for _, sub := range dto.Queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.runLastSubQuery(ctx, sub, dto.BackScan, emit); err != nil {
			return fmt.Errorf("metric %q: %w", sub.Metric, err)
		}
	}
	return nil
}

func (p *Pipeline) runLastSubQuery(ctx context.Context, sub model.LastSubQueryDto, backScanHours int, emit func(model.LastQueryResultDto) error) error {
	filters, err := BuildFilters(model.QueryPartDto{Metric: sub.Metric, Tags: sub.Tags, Filters: sub.Filters})
	if err != nil {
		return err
	}

	tagsets := p.tagsets.GetTagsets([]string{sub.Metric}, filters, false)
	if len(tagsets) == 0 {
		return nil
	}

	metricID, err := p.resolveMetricID(ctx, sub.Metric)
	if err != nil {
		return err
	}

	ids := make([]model.TagsetID, 0, len(tagsets))
	for id := range tagsets {
		ids = append(ids, id)
	}

	sqlText := `
		SELECT DISTINCT ON (tagset_id) tagset_id, time, value
		FROM point
		WHERE metric_id = $1 AND tagset_id = ANY($2)
	`
	args := []interface{}{metricID, pq.Array(ids)}
	if backScanHours > 0 {
		sqlText += " AND time >= $3"
		args = append(args, time.Now().Add(-time.Duration(backScanHours)*time.Hour))
	}
	sqlText += " ORDER BY tagset_id, time DESC"

	rows, err := p.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tagsetID model.TagsetID
		var ts time.Time
		var value float64
		if err := rows.Scan(&tagsetID, &ts, &value); err != nil {
			return err
		}

		// §9: a tagsetId unknown to C4 (freshly created between
		// refreshes) is silently skipped, not an error.
		tags, ok := tagsets[tagsetID]
		if !ok {
			continue
		}

		if err := emit(model.LastQueryResultDto{
			Metric:    sub.Metric,
			Tags:      tags,
			Timestamp: ts.Unix(),
			Value:     value,
		}); err != nil {
			return err
		}
	}
	return rows.Err()
}
