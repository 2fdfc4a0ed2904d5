package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/opentsdb-pg/tsdbadapter/internal/config"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

func TestSetupRoutesRegistersEveryEndpoint(t *testing.T) {
	router := mux.NewRouter()
	SetupRoutes(router, &sys.Context{Cfg: &config.Config{}})

	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/put"},
		{http.MethodPost, "/api/query"},
		{http.MethodPost, "/api/query/last"},
		{http.MethodPost, "/api/search/lookup"},
		{http.MethodGet, "/api/suggest"},
		{http.MethodGet, "/api/suggest/tagKeys/cpu"},
		{http.MethodGet, "/api/suggest/tagValues/host"},
		{http.MethodGet, "/api/health"},
	}
	for _, c := range cases {
		var match mux.RouteMatch
		req := httptest.NewRequest(c.method, c.path, nil)
		if !router.Match(req, &match) {
			t.Errorf("no route matched %s %s", c.method, c.path)
		}
	}
}
