package query

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagsetcache"
)

func TestExecuteSimpleAggregationScenario(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, tags, created FROM tagset`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tags", "created"}).
			AddRow(1, []byte(`{"host":"a"}`), created))
	mock.ExpectQuery(`SELECT m.name, ts.tagset_id, ts.created`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "tagset_id", "created"}).
			AddRow("cpu", 1, created))

	cache := tagsetcache.New(db)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	mock.ExpectQuery(`SELECT id FROM metric WHERE name = \$1`).
		WithArgs("cpu").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT time AS bucket, tagset_id, value FROM point`).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "tagset_id", "value"}).
			AddRow(t0, 1, 1.0).
			AddRow(t0.Add(10*time.Second), 1, 2.0).
			AddRow(t0.Add(20*time.Second), 1, 3.0))

	p := New(db, cache)
	var results []model.QueryResultDto
	err = p.Execute(context.Background(), model.QueryDto{
		Start: "2026-01-01T00:00:00Z",
		End:   "2026-01-01T01:00:00Z",
		Queries: []model.QueryPartDto{
			{Metric: "cpu", Aggregator: "avg"},
		},
	}, func(r model.QueryResultDto) error {
		results = append(results, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 series, got %d", len(results))
	}
	if len(results[0].Dps) != 1 {
		t.Fatalf("expected 1 datapoint (all 3 samples in one series-wide bucket), got %d", len(results[0].Dps))
	}
	for _, v := range results[0].Dps {
		if v != 2.0 {
			t.Errorf("expected averaged value 2, got %v", v)
		}
	}
}

func TestExecuteEmptyTagsetsSkipsSubquery(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cache := tagsetcache.New(db)
	p := New(db, cache)

	var called bool
	err = p.Execute(context.Background(), model.QueryDto{
		Start:   "1h-ago",
		Queries: []model.QueryPartDto{{Metric: "nonexistent"}},
	}, func(r model.QueryResultDto) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called {
		t.Errorf("expected no emission when no tagsets match")
	}
}
