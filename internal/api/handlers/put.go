package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/opentsdb-pg/tsdbadapter/internal/apperr"
	"github.com/opentsdb-pg/tsdbadapter/internal/httpresp"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

// PutHandler serves POST /api/put.
type PutHandler struct {
	Sys *sys.Context
}

// NewPutHandler builds a PutHandler over sys.
func NewPutHandler(sys *sys.Context) *PutHandler {
	return &PutHandler{Sys: sys}
}

func (h *PutHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var points []model.DataPoint
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		httpresp.WriteError(w, apperr.Validation("malformed request body: %v", err))
		return
	}
	if len(points) == 0 {
		httpresp.WriteError(w, apperr.Validation("at least one data point is required"))
		return
	}

	stats, err := h.Sys.Ingest.Write(r.Context(), points)
	if err != nil {
		httpresp.WriteError(w, err)
		return
	}

	httpresp.WriteJSON(w, http.StatusOK, stats)
}
