package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/opentsdb-pg/tsdbadapter/internal/config"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagsetcache"
)

func newWarmedCache(t *testing.T) *tagsetcache.Cache {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectQuery(`SELECT id, tags, created FROM tagset`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tags", "created"}))
	mock.ExpectQuery(`SELECT m.name, ts.tagset_id, ts.created`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "tagset_id", "created"}))

	cache := tagsetcache.New(db)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return cache
}

func TestHandleHealthReportsOKWhenFresh(t *testing.T) {
	h := &HealthHandler{Sys: &sys.Context{
		Cfg:     &config.Config{TagsetCacheUpdateInterval: time.Minute},
		Tagsets: newWarmedCache(t),
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleHealthReportsUnavailableWhenStale(t *testing.T) {
	h := &HealthHandler{Sys: &sys.Context{
		Cfg:     &config.Config{TagsetCacheUpdateInterval: -time.Hour}, // makes staleAfter negative, always stale
		Tagsets: newWarmedCache(t),
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
}
