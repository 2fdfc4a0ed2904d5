// Package routes wires the HTTP handlers onto a gorilla/mux router. The
// split from internal/api/handlers mirrors the teacher's organization:
// handlers hold the per-endpoint logic, routes just registers paths.
package routes

import (
	"github.com/gorilla/mux"

	"github.com/opentsdb-pg/tsdbadapter/internal/api/handlers"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
)

// SetupRoutes registers every endpoint named in §6/§7 on router.
func SetupRoutes(router *mux.Router, sysCtx *sys.Context) {
	put := handlers.NewPutHandler(sysCtx)
	query := handlers.NewQueryHandler(sysCtx)
	lookup := handlers.NewLookupHandler(sysCtx)
	suggest := handlers.NewSuggestHandler(sysCtx)
	health := handlers.NewHealthHandler(sysCtx)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/put", put.HandlePut).Methods("POST")
	api.HandleFunc("/query", query.HandleQuery).Methods("POST")
	api.HandleFunc("/query/last", query.HandleQueryLast).Methods("POST")
	api.HandleFunc("/search/lookup", lookup.HandleLookup).Methods("POST")
	api.HandleFunc("/suggest", suggest.HandleSuggest).Methods("GET")
	api.HandleFunc("/suggest/tagKeys/{metric}", suggest.HandleSuggestTagKeys).Methods("GET")
	api.HandleFunc("/suggest/tagValues/{tagKey}", suggest.HandleSuggestTagValues).Methods("GET")
	api.HandleFunc("/health", health.HandleHealth).Methods("GET")
}
