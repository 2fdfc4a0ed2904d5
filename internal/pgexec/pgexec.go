// Package pgexec wraps the TimescaleDB connection pool. Per the design
// note on DB connection lifecycle in singletons (§9), long-lived workers
// (C4, C10) pull a handle from the pool per cycle rather than holding one
// open for the process lifetime; request handlers do the same per call.
package pgexec

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
)

// Pool is a thin handle around *sql.DB, grounded on pgdatastore.go's
// db *sql.DB field but generalized to serve every component in this
// module rather than one store.
type Pool struct {
	db *sql.DB
}

// Open establishes the pool. It pings once so startup fails fast on a
// bad DSN rather than on the first query much later.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logging.Info("pgexec: connected to TimescaleDB")
	return &Pool{db: db}, nil
}

// DB returns the underlying handle for callers that need raw
// database/sql access (query builders in internal/downsample and
// internal/query construct SQL strings that this handle executes).
func (p *Pool) DB() *sql.DB { return p.db }

// Close releases the pool. Safe to call once at process shutdown.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
