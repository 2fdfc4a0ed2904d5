// Package sys wires together the long-lived components every HTTP
// handler and background worker needs, grounded on the teacher's
// SystemContext pattern used throughout internal/api/handlers.
package sys

import (
	"github.com/opentsdb-pg/tsdbadapter/internal/config"
	"github.com/opentsdb-pg/tsdbadapter/internal/ingest"
	"github.com/opentsdb-pg/tsdbadapter/internal/pgexec"
	"github.com/opentsdb-pg/tsdbadapter/internal/query"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagsetcache"
)

// Context bundles the shared, process-lifetime dependencies.
type Context struct {
	Cfg     *config.Config
	DB      *pgexec.Pool
	Tagsets *tagsetcache.Cache
	Ingest  *ingest.Pipeline
	Query   *query.Pipeline
}

// New assembles a Context from its already-constructed parts.
func New(cfg *config.Config, db *pgexec.Pool, tagsets *tagsetcache.Cache, ing *ingest.Pipeline, q *query.Pipeline) *Context {
	return &Context{Cfg: cfg, DB: db, Tagsets: tagsets, Ingest: ing, Query: q}
}
