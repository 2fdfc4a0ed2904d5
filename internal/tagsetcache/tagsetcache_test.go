package tagsetcache

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagfilter"
)

func TestRefreshAdvancesHighWaterMarksAndPopulatesIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	created1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created2 := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, tags, created FROM tagset`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tags", "created"}).
			AddRow(1, []byte(`{"host":"a"}`), created1))

	mock.ExpectQuery(`SELECT m.name, ts.tagset_id, ts.created`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "tagset_id", "created"}).
			AddRow("cpu", 1, created2))

	c := New(db)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if !c.tagsetHWM.Equal(created1) {
		t.Errorf("expected tagsetHWM advanced to %v, got %v", created1, c.tagsetHWM)
	}
	if !c.timeSeriesHWM.Equal(created2) {
		t.Errorf("expected timeSeriesHWM advanced to %v, got %v", created2, c.timeSeriesHWM)
	}
	if got := c.tagsetByID[1]; got["host"] != "a" {
		t.Errorf("expected tagsetById[1] to carry host=a, got %v", got)
	}
	if ids := c.tagsetIDsByMetric["cpu"]; len(ids) != 1 || ids[0] != 1 {
		t.Errorf("expected cpu -> [1], got %v", ids)
	}
	if c.LastSuccessfulUpdate().IsZero() {
		t.Errorf("expected lastSuccessfulUpdate to be stamped")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPruneIsNoOpBeforeFirstRefresh(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	c := New(db)
	if err := c.Prune(context.Background()); err != nil {
		t.Fatalf("Prune: %v", err)
	}
}

func TestPruneRemovesStaleTagsets(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	c := New(db)
	c.hasRefreshedOnce = true
	c.tagsetByID[1] = model.Tags{"host": "a"}
	c.tagsetByID[2] = model.Tags{"host": "b"}
	c.tagIndex.AddTag("host", "a", 1)
	c.tagIndex.AddTag("host", "b", 2)
	c.tagsetIDsByMetric["cpu"] = []model.TagsetID{1, 2}

	mock.ExpectQuery(`SELECT id FROM tagset`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	if err := c.Prune(context.Background()); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if _, ok := c.tagsetByID[1]; ok {
		t.Errorf("expected tagset 1 to be pruned")
	}
	if _, ok := c.tagsetByID[2]; !ok {
		t.Errorf("expected tagset 2 to survive")
	}
	if ids := c.tagsetIDsByMetric["cpu"]; len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expected cpu -> [2], got %v", ids)
	}
	if n := c.tagIndex.PossibleTagValueCount("host"); n != 1 {
		t.Errorf("expected 1 surviving host value, got %d", n)
	}
}

func newTestCache() *Cache {
	c := New(nil)
	c.hasRefreshedOnce = true
	c.tagsetByID[1] = model.Tags{"host": "a", "env": "prod"}
	c.tagsetByID[2] = model.Tags{"host": "b", "env": "prod"}
	c.tagsetByID[3] = model.Tags{"host": "a"}
	c.tagIndex.AddTag("host", "a", 1)
	c.tagIndex.AddTag("env", "prod", 1)
	c.tagIndex.AddTag("host", "b", 2)
	c.tagIndex.AddTag("env", "prod", 2)
	c.tagIndex.AddTag("host", "a", 3)
	c.tagsetIDsByMetric["cpu"] = []model.TagsetID{1, 2}
	c.tagsetIDsByMetric["mem"] = []model.TagsetID{3}
	return c
}

func TestGetTagsetsNoFiltersReturnsMetricUnion(t *testing.T) {
	c := newTestCache()
	got := c.GetTagsets([]string{"cpu"}, nil, false)
	if len(got) != 2 {
		t.Fatalf("expected 2 tagsets for cpu, got %d", len(got))
	}
}

func TestGetTagsetsAppliesFilter(t *testing.T) {
	c := newTestCache()
	f, err := tagfilter.Parse("host", "", "a", false)
	if err != nil {
		t.Fatal(err)
	}
	got := c.GetTagsets([]string{"cpu", "mem"}, []*tagfilter.Filter{f}, false)
	if len(got) != 2 {
		t.Fatalf("expected tagsets 1 and 3 to match host=a, got %d: %v", len(got), got)
	}
	if _, ok := got[1]; !ok {
		t.Errorf("expected tagset 1 present")
	}
	if _, ok := got[3]; !ok {
		t.Errorf("expected tagset 3 present")
	}
}

func TestGetTagsetsExplicitTagsRestriction(t *testing.T) {
	c := newTestCache()
	f, err := tagfilter.Parse("host", "", "a|b", false)
	if err != nil {
		t.Fatal(err)
	}
	// explicitTags requires key-set equal to {host}; tagsets 1 and 2 also carry "env" so they're excluded.
	got := c.GetTagsets([]string{"cpu", "mem"}, []*tagfilter.Filter{f}, true)
	if len(got) != 1 {
		t.Fatalf("expected only tagset 3 to satisfy explicitTags, got %d: %v", len(got), got)
	}
	if _, ok := got[3]; !ok {
		t.Errorf("expected tagset 3 present")
	}
}

func TestGetTagsetsUnknownFilterKeyYieldsEmpty(t *testing.T) {
	c := newTestCache()
	f, err := tagfilter.Parse("missing", "", "x", false)
	if err != nil {
		t.Fatal(err)
	}
	got := c.GetTagsets([]string{"cpu"}, []*tagfilter.Filter{f}, false)
	if len(got) != 0 {
		t.Errorf("expected empty result for unknown filter key, got %v", got)
	}
}

func TestGetTagsetsIsIdempotent(t *testing.T) {
	c := newTestCache()
	f, err := tagfilter.Parse("host", "", "a", false)
	if err != nil {
		t.Fatal(err)
	}
	first := c.GetTagsets([]string{"cpu", "mem"}, []*tagfilter.Filter{f}, false)
	second := c.GetTagsets([]string{"cpu", "mem"}, []*tagfilter.Filter{f}, false)
	if len(first) != len(second) {
		t.Fatalf("expected idempotent results, got %d vs %d", len(first), len(second))
	}
	for id := range first {
		if _, ok := second[id]; !ok {
			t.Errorf("expected id %d present in both calls", id)
		}
	}
}
