package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/opentsdb-pg/tsdbadapter/internal/apperr"
	"github.com/opentsdb-pg/tsdbadapter/internal/httpresp"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

const defaultSuggestMax = 25

// SuggestHandler serves GET /api/suggest and its metric/tag-scoped variants.
type SuggestHandler struct {
	Sys *sys.Context
}

// NewSuggestHandler builds a SuggestHandler over sys.
func NewSuggestHandler(sys *sys.Context) *SuggestHandler {
	return &SuggestHandler{Sys: sys}
}

func (h *SuggestHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		httpresp.WriteError(w, apperr.Validation("type is required"))
		return
	}
	q := r.URL.Query().Get("q")
	max := defaultSuggestMax
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpresp.WriteError(w, apperr.Validation("max must be an integer: %v", err))
			return
		}
		max = n
	}

	results := h.Sys.Query.Suggest(typ, q, max)
	if results == nil {
		httpresp.WriteError(w, apperr.Validation("unknown suggest type %q", typ))
		return
	}
	httpresp.WriteJSON(w, http.StatusOK, results)
}

func (h *SuggestHandler) HandleSuggestTagKeys(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]
	httpresp.WriteJSON(w, http.StatusOK, h.Sys.Query.SuggestTagKeys(metric))
}

func (h *SuggestHandler) HandleSuggestTagValues(w http.ResponseWriter, r *http.Request) {
	tagKey := mux.Vars(r)["tagKey"]
	httpresp.WriteJSON(w, http.StatusOK, h.Sys.Query.SuggestTagValues(tagKey))
}
