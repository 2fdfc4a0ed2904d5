// Package schema documents the fixed external DDL contract (§6.1) that the
// core engine cooperates with, and checks the running adapter's expected
// schema version against the one configured for the target database. The
// DDL itself is applied out of band (migration tooling is a Non-goal);
// this package only records the contract and guards against a trivial
// version skew.
package schema

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// MinCompatible is the oldest DDL schema version this adapter understands.
// Bump it whenever a component starts relying on a column or index that an
// older deployment's DDL doesn't have yet.
const MinCompatible = "1.0.0"

// CheckVersion parses the configured SCHEMA_VERSION and rejects startup if
// it predates MinCompatible, rather than failing confusingly on the first
// query that touches a missing column.
func CheckVersion(configured string) error {
	min, err := version.NewVersion(MinCompatible)
	if err != nil {
		return fmt.Errorf("internal: invalid MinCompatible constant: %w", err)
	}
	got, err := version.NewVersion(configured)
	if err != nil {
		return fmt.Errorf("invalid SCHEMA_VERSION %q: %w", configured, err)
	}
	if got.LessThan(min) {
		return fmt.Errorf("schema version %s is older than the minimum supported %s", configured, MinCompatible)
	}
	return nil
}

// DDL is the fixed external contract from §6.1, kept here for reference
// and for integration tests that stand up a scratch database. Compression
// policy and retention policy calls are TimescaleDB-specific and are
// issued separately by deployment tooling, not by this adapter.
const DDL = `
CREATE TABLE IF NOT EXISTS metric (
	id         SMALLINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tagset (
	id         INT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	tags       JSONB NOT NULL UNIQUE,
	created    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS point (
	metric_id  SMALLINT NOT NULL REFERENCES metric(id),
	tagset_id  INT NOT NULL REFERENCES tagset(id),
	time       TIMESTAMPTZ NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	UNIQUE (metric_id, tagset_id, time)
);
-- SELECT create_hypertable('point', 'time', chunk_time_interval => INTERVAL '1 hour');
-- ALTER TABLE point SET (timescaledb.compress, timescaledb.compress_segmentby = 'metric_id, tagset_id', timescaledb.compress_orderby = 'time');
-- SELECT add_retention_policy('point', INTERVAL '30 days');

CREATE TABLE IF NOT EXISTS time_series (
	metric_id  SMALLINT NOT NULL REFERENCES metric(id),
	tagset_id  INT NOT NULL REFERENCES tagset(id),
	created    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_used  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (metric_id, tagset_id)
);

-- AFTER INSERT trigger on point upserts time_series and advances last_used
-- to max(existing, excluded).
`
