// Package httpresp holds the response helpers shared by every handler in
// internal/api/handlers: JSON encoding, error-to-status mapping (§7), and
// the streaming-array writer the query endpoints use.
package httpresp

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/opentsdb-pg/tsdbadapter/internal/apperr"
	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
)

type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WriteError maps err onto the HTTP status §7 assigns to its Kind, logging
// a correlation code for the one case (server error) where the client-facing
// message can't carry enough detail to debug from.
func WriteError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !apperr.As(err, &ae) {
		ae = apperr.Server(err)
	}

	switch ae.Kind {
	case apperr.KindValidation:
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: ae.Error()})
	case apperr.KindNotFound:
		WriteJSON(w, http.StatusNotFound, errorBody{Error: ae.Error()})
	case apperr.KindCanceled:
		// The client already went away; nothing to write.
	default:
		code := uuid.NewString()
		logging.WithCorrelation(code).Err(ae).Msg("unhandled server error")
		WriteJSON(w, http.StatusInternalServerError, errorBody{
			Error:         "internal error",
			CorrelationID: code,
		})
	}
}

// WriteJSON encodes v as the full response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ArrayWriter streams a JSON array one element at a time, so a query
// handler never has to buffer every series in memory before responding
// (§9's back-pressure note).
type ArrayWriter struct {
	w       http.ResponseWriter
	enc     *json.Encoder
	wrote   bool
}

// NewArrayWriter starts a 200 response and writes the opening bracket.
func NewArrayWriter(w http.ResponseWriter) *ArrayWriter {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("["))
	return &ArrayWriter{w: w, enc: json.NewEncoder(w)}
}

// WriteElement appends v to the streamed array.
func (a *ArrayWriter) WriteElement(v interface{}) error {
	if a.wrote {
		if _, err := a.w.Write([]byte(",")); err != nil {
			return err
		}
	}
	a.wrote = true
	return a.enc.Encode(v)
}

// Close writes the closing bracket. It must be called even if no elements
// were written, so an empty result still renders as "[]".
func (a *ArrayWriter) Close() {
	_, _ = a.w.Write([]byte("]"))
}
