package downsample

import (
	"testing"
	"time"

	"github.com/opentsdb-pg/tsdbadapter/internal/aggregate"
)

func TestParseSpecBasic(t *testing.T) {
	s, err := ParseSpec("1h-avg-zero")
	if err != nil {
		t.Fatal(err)
	}
	if s.Bucket != time.Hour {
		t.Errorf("expected 1h bucket, got %v", s.Bucket)
	}
	if s.Fn != aggregate.KindAvg {
		t.Errorf("expected avg aggregator, got %v", s.Fn)
	}
	if s.Fill != FillZero {
		t.Errorf("expected zero fill, got %v", s.Fill)
	}
}

func TestParseSpecNoFillDefaultsToNone(t *testing.T) {
	s, err := ParseSpec("5m-sum")
	if err != nil {
		t.Fatal(err)
	}
	if s.Fill != FillNone {
		t.Errorf("expected default fill none, got %v", s.Fill)
	}
}

func TestParseSpecAllSentinel(t *testing.T) {
	s, err := ParseSpec("0all-max")
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsAllBucket {
		t.Errorf("expected IsAllBucket true for 0all")
	}
	if s.Fn != aggregate.KindMax {
		t.Errorf("expected max aggregator, got %v", s.Fn)
	}
}

func TestParseSpecInvalid(t *testing.T) {
	if _, err := ParseSpec("garbage"); err == nil {
		t.Errorf("expected error for invalid spec")
	}
}

func TestBuildAlignsBoundaryOutward(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 3, 15, 0, 0, time.UTC)

	q := Build(Spec{Bucket: time.Hour, Fn: aggregate.KindAvg, Fill: FillNone}, start, end)

	alignedStart := q.Args[1].(time.Time)
	alignedEnd := q.Args[2].(time.Time)

	wantStart := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 1, 4, 0, 0, 0, time.UTC)
	if !alignedStart.Equal(wantStart) {
		t.Errorf("expected aligned start %v, got %v", wantStart, alignedStart)
	}
	if !alignedEnd.Equal(wantEnd) {
		t.Errorf("expected aligned end %v, got %v", wantEnd, alignedEnd)
	}
}

func TestBuildUsesGapfillWhenFillRequested(t *testing.T) {
	q := Build(Spec{Bucket: time.Minute, Fn: aggregate.KindAvg, Fill: FillZero}, time.Now(), time.Now().Add(time.Hour))
	if q.BucketExpr != "time_bucket_gapfill($1, time)" {
		t.Errorf("expected gapfill bucket expr, got %q", q.BucketExpr)
	}
}

func TestBuildUsesPlainBucketWhenNoFill(t *testing.T) {
	q := Build(Spec{Bucket: time.Minute, Fn: aggregate.KindAvg, Fill: FillNone}, time.Now(), time.Now().Add(time.Hour))
	if q.BucketExpr != "time_bucket($1, time)" {
		t.Errorf("expected plain bucket expr, got %q", q.BucketExpr)
	}
}

func TestApplyFillZeroRewritesNull(t *testing.T) {
	v, ok := ApplyFill(FillZero, 0, false)
	if !ok || v != 0.0 {
		t.Errorf("expected (0, true), got (%v, %v)", v, ok)
	}
}

func TestApplyFillNullKeepsAbsent(t *testing.T) {
	v, ok := ApplyFill(FillNull, 0, false)
	if !ok || v != nil {
		t.Errorf("expected (nil, true), got (%v, %v)", v, ok)
	}
}

func TestApplyFillPassesThroughPresentValue(t *testing.T) {
	v, ok := ApplyFill(FillZero, 42, true)
	if !ok || v != 42.0 {
		t.Errorf("expected (42, true), got (%v, %v)", v, ok)
	}
}
