package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/opentsdb-pg/tsdbadapter/internal/downsample"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
)

// point is one fetched (bucket, tagset, value) row. Value is absent for
// a gap-filled bucket with no underlying data.
type point struct {
	bucket   time.Time
	tagsetID model.TagsetID
	value    float64
	ok       bool
}

// fetchRows builds and runs either the downsampled (C8) row query or a
// plain time-range projection, per §4.9 step 4.
func (p *Pipeline) fetchRows(ctx context.Context, metricID model.MetricID, tagsetIDs []model.TagsetID, start, end time.Time, spec *downsample.Spec) ([]point, error) {
	var sqlText string
	var args []interface{}

	if spec != nil {
		q := downsample.Build(*spec, start, end)
		sqlText = fmt.Sprintf(`
			SELECT %s AS bucket, tagset_id, %s AS value
			FROM point
			WHERE metric_id = $%d AND tagset_id = ANY($%d) AND %s
			GROUP BY bucket, tagset_id
			ORDER BY tagset_id, bucket
		`, q.BucketExpr, q.SelectExpr, len(q.Args)+1, len(q.Args)+2, q.WhereExpr)
		args = append(append([]interface{}{}, q.Args...), metricID, pq.Array(tagsetIDs))
	} else {
		sqlText = `
			SELECT time AS bucket, tagset_id, value
			FROM point
			WHERE metric_id = $1 AND tagset_id = ANY($2) AND time >= $3 AND time < $4
			ORDER BY tagset_id, time
		`
		args = []interface{}{metricID, pq.Array(tagsetIDs), start, end}
	}

	rows, err := p.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []point
	for rows.Next() {
		var bucket time.Time
		var tagsetID model.TagsetID
		var value sql.NullFloat64
		if err := rows.Scan(&bucket, &tagsetID, &value); err != nil {
			return nil, err
		}
		out = append(out, point{bucket: bucket, tagsetID: tagsetID, value: value.Float64, ok: value.Valid})
	}
	return out, rows.Err()
}
