// Package downsample builds the bucketed SQL fragment described in §4.8
// (C8): either a one-bucket-per-series sentinel ("0all") or a
// time_bucket/time_bucket_gapfill expression aligned outward to bucket
// boundaries, with per-aggregator projection and bound parameters for
// everything except function/column identifiers.
package downsample

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/opentsdb-pg/tsdbadapter/internal/aggregate"
)

var wireSpec = regexp.MustCompile(`^(\d+)(ms|s|m|h|d|w|n|y|all)-([a-z]+)(?:-([a-z]+))?$`)

func unitDuration(unit string) time.Duration {
	switch unit {
	case "ms":
		return time.Millisecond
	case "s":
		return time.Second
	case "m":
		return time.Minute
	case "h":
		return time.Hour
	case "d":
		return 24 * time.Hour
	case "w":
		return 7 * 24 * time.Hour
	case "n":
		return 30 * 24 * time.Hour
	case "y":
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// ParseSpec parses the wire grammar "<quantity><unit>-<agg>[-<fill>]"
// from §6.2, e.g. "1h-avg-zero" or "0all-sum".
func ParseSpec(wire string) (Spec, error) {
	m := wireSpec.FindStringSubmatch(wire)
	if m == nil {
		return Spec{}, fmt.Errorf("invalid downsample spec %q", wire)
	}
	quantity, err := strconv.Atoi(m[1])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid downsample quantity in %q: %w", wire, err)
	}
	unit := m[2]
	fill := FillNone
	if m[4] != "" {
		fill = FillPolicy(m[4])
	}

	if unit == "all" {
		return Spec{IsAllBucket: true, Fn: aggregate.Kind(m[3]), Fill: fill}, nil
	}
	return Spec{Bucket: time.Duration(quantity) * unitDuration(unit), Fn: aggregate.Kind(m[3]), Fill: fill}, nil
}

// FillPolicy controls how a gap-filled bucket with no data is rendered.
type FillPolicy string

const (
	FillNone FillPolicy = "none"
	FillNaN  FillPolicy = "nan"
	FillNull FillPolicy = "null"
	FillZero FillPolicy = "zero"
)

// Spec is a parsed downsample wire string, e.g. "1h-avg-zero".
type Spec struct {
	Bucket     time.Duration
	IsAllBucket bool // true for the "0all" sentinel: one bucket covering the whole range
	Fn         aggregate.Kind
	Fill       FillPolicy
}

// Query is the built SQL fragment plus the ordered bind arguments that
// fill its placeholders, starting from $1.
type Query struct {
	SelectExpr string // aggregation expression, e.g. "avg(value)"
	BucketExpr string // e.g. "time_bucket($1, time)", or "$1::timestamptz" bound to start for the all-bucket sentinel
	WhereExpr  string // e.g. "time >= $2 AND time < $3"
	Args       []interface{}
	Fill       FillPolicy
}

// Build produces the SQL pieces for spec over [start, end). start/end
// are aligned outward to bucket boundaries first, matching OpenTSDB
// parity (§4.8: "for bucket=1h, query [00:30,03:15] buckets as
// [01:00,02:00,03:00,04:00]").
func Build(spec Spec, start, end time.Time) Query {
	if end.IsZero() {
		end = time.Now()
	}

	if spec.IsAllBucket {
		return Query{
			SelectExpr: aggExpr(spec.Fn),
			BucketExpr: "$1::timestamptz",
			WhereExpr:  "time >= $2 AND time < $3",
			Args:       []interface{}{start, start, end},
			Fill:       spec.Fill,
		}
	}

	alignedStart := alignCeil(start, spec.Bucket)
	alignedEnd := alignCeil(end, spec.Bucket)

	bucketFn := "time_bucket"
	if spec.Fill != FillNone {
		bucketFn = "time_bucket_gapfill"
	}

	return Query{
		SelectExpr: aggExpr(spec.Fn),
		BucketExpr: fmt.Sprintf("%s($1, time)", bucketFn),
		WhereExpr:  "time >= $2 AND time < $3",
		Args:       []interface{}{spec.Bucket, alignedStart, alignedEnd},
		Fill:       spec.Fill,
	}
}

// alignCeil rounds t up to the next bucket boundary, unless it already
// lands exactly on one.
func alignCeil(t time.Time, bucket time.Duration) time.Time {
	if bucket <= 0 {
		return t
	}
	rem := t.UnixNano() % bucket.Nanoseconds()
	if rem == 0 {
		return t
	}
	return t.Add(time.Duration(bucket.Nanoseconds() - rem))
}

func aggExpr(fn aggregate.Kind) string {
	switch fn {
	case aggregate.KindCount:
		return "count(1)"
	case aggregate.KindFirst:
		return "first(value, time)"
	case aggregate.KindLast:
		return "last(value, time)"
	case aggregate.KindMax:
		return "max(value)"
	case aggregate.KindMin:
		return "min(value)"
	case aggregate.KindSum:
		return "sum(value)"
	case aggregate.KindMedian:
		return "percentile_cont(0.5) within group (order by value)"
	default: // avg/mean
		return "avg(value)"
	}
}

// ApplyFill rewrites a SQL NULL (represented here as ok=false) per the
// bucket's fill policy: zero/nan replace it with a literal, null keeps
// it absent, none means gapfill was never requested so no synthetic
// rows exist to begin with.
func ApplyFill(policy FillPolicy, value float64, ok bool) (interface{}, bool) {
	if ok {
		return value, true
	}
	switch policy {
	case FillZero:
		return 0.0, true
	case FillNaN:
		return "NaN", true
	default: // null, none
		return nil, true
	}
}
