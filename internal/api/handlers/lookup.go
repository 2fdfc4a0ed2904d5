package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/opentsdb-pg/tsdbadapter/internal/apperr"
	"github.com/opentsdb-pg/tsdbadapter/internal/httpresp"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

// LookupHandler serves POST /api/search/lookup.
type LookupHandler struct {
	Sys *sys.Context
}

// NewLookupHandler builds a LookupHandler over sys.
func NewLookupHandler(sys *sys.Context) *LookupHandler {
	return &LookupHandler{Sys: sys}
}

func (h *LookupHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	var req model.LookupRequestDto
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpresp.WriteError(w, apperr.Validation("malformed request body: %v", err))
		return
	}
	if req.Metric == "" {
		httpresp.WriteError(w, apperr.Validation("metric is required"))
		return
	}

	resp, err := h.Sys.Query.Lookup(req)
	if err != nil {
		httpresp.WriteError(w, err)
		return
	}
	httpresp.WriteJSON(w, http.StatusOK, resp)
}
