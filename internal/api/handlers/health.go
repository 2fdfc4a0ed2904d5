package handlers

import (
	"net/http"
	"time"

	"github.com/opentsdb-pg/tsdbadapter/internal/httpresp"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	Sys *sys.Context
}

// NewHealthHandler builds a HealthHandler over sys.
func NewHealthHandler(sys *sys.Context) *HealthHandler {
	return &HealthHandler{Sys: sys}
}

type healthBody struct {
	Status               string    `json:"status"`
	LastTagsetCacheUpdate time.Time `json:"lastTagsetCacheUpdate"`
}

// HandleHealth reports unhealthy (503) once the tagset cache has gone
// stale for more than twice its configured refresh interval — the point
// at which GetTagsets answers are old enough that a caller should stop
// trusting them (SPEC_FULL supplemented feature).
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	last := h.Sys.Tagsets.LastSuccessfulUpdate()
	staleAfter := 2 * h.Sys.Cfg.TagsetCacheUpdateInterval

	status := http.StatusOK
	body := healthBody{Status: "ok", LastTagsetCacheUpdate: last}
	if last.IsZero() || time.Since(last) > staleAfter {
		status = http.StatusServiceUnavailable
		body.Status = "unhealthy"
	}
	httpresp.WriteJSON(w, status, body)
}
