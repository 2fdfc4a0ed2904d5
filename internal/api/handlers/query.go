package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/opentsdb-pg/tsdbadapter/internal/apperr"
	"github.com/opentsdb-pg/tsdbadapter/internal/httpresp"
	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

// QueryHandler serves POST /api/query and POST /api/query/last.
type QueryHandler struct {
	Sys *sys.Context
}

// NewQueryHandler builds a QueryHandler over sys.
func NewQueryHandler(sys *sys.Context) *QueryHandler {
	return &QueryHandler{Sys: sys}
}

func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var dto model.QueryDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpresp.WriteError(w, apperr.Validation("malformed request body: %v", err))
		return
	}
	if len(dto.Queries) == 0 {
		httpresp.WriteError(w, apperr.Validation("at least one sub-query is required"))
		return
	}
	for _, sub := range dto.Queries {
		if sub.Metric == "" {
			httpresp.WriteError(w, apperr.Validation("each sub-query requires a metric"))
			return
		}
	}

	aw := httpresp.NewArrayWriter(w)
	defer aw.Close()

	err := h.Sys.Query.Execute(r.Context(), dto, func(series model.QueryResultDto) error {
		return aw.WriteElement(series)
	})
	if err != nil {
		// The 200 and the array's opening bracket are already written, so
		// there is no clean way to report this to the client; it sees a
		// truncated array. Log it so the operator can find it.
		logging.Error("query failed mid-stream: %v", err)
	}
}

func (h *QueryHandler) HandleQueryLast(w http.ResponseWriter, r *http.Request) {
	var dto model.LastQueryDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpresp.WriteError(w, apperr.Validation("malformed request body: %v", err))
		return
	}
	if len(dto.Queries) == 0 {
		httpresp.WriteError(w, apperr.Validation("at least one sub-query is required"))
		return
	}
	for _, sub := range dto.Queries {
		if sub.Metric == "" {
			httpresp.WriteError(w, apperr.Validation("each sub-query requires a metric"))
			return
		}
	}

	aw := httpresp.NewArrayWriter(w)
	defer aw.Close()

	err := h.Sys.Query.ExecuteLast(r.Context(), dto, func(series model.LastQueryResultDto) error {
		return aw.WriteElement(series)
	})
	if err != nil {
		logging.Error("query/last failed mid-stream: %v", err)
	}
}
