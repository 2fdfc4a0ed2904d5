// Package housekeeping implements the retention sweep from §4.10 (C10):
// prune orphaned time_series rows, then metrics and tagsets no longer
// referenced by any time_series, then reconcile the tagset cache.
package housekeeping

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagsetcache"
)

const pruneBatchSize = 1000

// Worker owns the DB handle and the tagset cache it reconciles after
// pruning.
type Worker struct {
	db             *sql.DB
	tagsets        *tagsetcache.Cache
	retentionPeriod time.Duration
}

// New builds a Worker. retentionPeriod is DATA_RETENTION_DAYS expressed
// as a duration (§6.3).
func New(db *sql.DB, tagsets *tagsetcache.Cache, retentionPeriod time.Duration) *Worker {
	return &Worker{db: db, tagsets: tagsets, retentionPeriod: retentionPeriod}
}

// Run executes one full sweep: time_series first (metric/tagset
// deletion depends on its referential check), then orphaned metrics,
// then orphaned tagsets, then C4.Prune.
func (w *Worker) Run(ctx context.Context) error {
	pruned, err := w.pruneOrphanedTimeSeries(ctx)
	if err != nil {
		return fmt.Errorf("prune time_series: %w", err)
	}
	if pruned > 0 {
		logging.Info("housekeeping: pruned %d orphaned time_series rows", pruned)
	}

	metricsDeleted, err := w.deleteOrphanedMetrics(ctx)
	if err != nil {
		return fmt.Errorf("delete orphaned metrics: %w", err)
	}
	if metricsDeleted > 0 {
		logging.Info("housekeeping: deleted %d orphaned metrics", metricsDeleted)
	}

	tagsetsDeleted, err := w.deleteOrphanedTagsets(ctx)
	if err != nil {
		return fmt.Errorf("delete orphaned tagsets: %w", err)
	}
	if tagsetsDeleted > 0 {
		logging.Info("housekeeping: deleted %d orphaned tagsets", tagsetsDeleted)
	}

	if err := w.tagsets.Prune(ctx); err != nil {
		return fmt.Errorf("tagset cache prune: %w", err)
	}
	return nil
}

// pruneOrphanedTimeSeries deletes time_series rows untouched past
// retention with no backing point, in batches of pruneBatchSize until a
// batch comes back empty.
func (w *Worker) pruneOrphanedTimeSeries(ctx context.Context) (int64, error) {
	var total int64
	for {
		res, err := w.db.ExecContext(ctx, `
			DELETE FROM time_series
			WHERE ctid IN (
				SELECT ts.ctid FROM time_series ts
				WHERE now() - ts.last_used > $1
				  AND NOT EXISTS (
					SELECT 1 FROM point p
					WHERE p.metric_id = ts.metric_id AND p.tagset_id = ts.tagset_id
				  )
				LIMIT $2
			)
		`, w.retentionPeriod, pruneBatchSize)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
		if n < pruneBatchSize {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// deleteOrphanedMetrics removes metrics older than retention with no
// surviving time_series reference. Recently-created metrics are
// protected even if unreferenced yet, so housekeeping never races a
// metric the ingest cache just resolved.
func (w *Worker) deleteOrphanedMetrics(ctx context.Context) (int64, error) {
	res, err := w.db.ExecContext(ctx, `
		DELETE FROM metric m
		WHERE now() - m.created > $1
		  AND NOT EXISTS (SELECT 1 FROM time_series ts WHERE ts.metric_id = m.id)
	`, w.retentionPeriod)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// deleteOrphanedTagsets is the symmetric cleanup for tagset rows.
func (w *Worker) deleteOrphanedTagsets(ctx context.Context) (int64, error) {
	res, err := w.db.ExecContext(ctx, `
		DELETE FROM tagset t
		WHERE now() - t.created > $1
		  AND NOT EXISTS (SELECT 1 FROM time_series ts WHERE ts.tagset_id = t.id)
	`, w.retentionPeriod)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
