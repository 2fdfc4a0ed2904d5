// Package bootstrap assembles the adapter's components at startup: load
// config, open the database, warm the tagset cache, start the background
// schedulers, and start serving HTTP.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/opentsdb-pg/tsdbadapter/internal/api/routes"
	"github.com/opentsdb-pg/tsdbadapter/internal/config"
	"github.com/opentsdb-pg/tsdbadapter/internal/housekeeping"
	"github.com/opentsdb-pg/tsdbadapter/internal/ingest"
	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
	"github.com/opentsdb-pg/tsdbadapter/internal/pgexec"
	"github.com/opentsdb-pg/tsdbadapter/internal/query"
	"github.com/opentsdb-pg/tsdbadapter/internal/scheduler"
	"github.com/opentsdb-pg/tsdbadapter/internal/schema"
	"github.com/opentsdb-pg/tsdbadapter/internal/sys"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagsetcache"
)

// App holds everything main needs to run and shut down cleanly.
type App struct {
	Sys    *sys.Context
	Server *http.Server

	refreshSched     *scheduler.Scheduler
	housekeepSched   *scheduler.Scheduler
}

// LoadConfig loads configuration from the environment. Split out of New so
// main can set up logging with the loaded level before anything else runs.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// SetupLogging initializes the package-level logger from cfg.
func SetupLogging(cfg *config.Config) {
	logging.Init(cfg.LogLevel, cfg.LogFormat)
}

// New opens the database, performs the initial tagset cache load, and
// wires every component together. It does not start background
// schedulers or the HTTP listener; call Run for that.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := schema.CheckVersion(cfg.SchemaVersion); err != nil {
		return nil, fmt.Errorf("schema compatibility: %w", err)
	}

	pool, err := pgexec.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tagsets := tagsetcache.New(pool.DB())
	if err := tagsets.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial tagset cache load: %w", err)
	}
	logging.Info("tagset cache warmed: %d metrics", len(tagsets.Metrics()))

	ingestPipeline := ingest.New(pool.DB(), cfg.InsertMetricCacheSize, cfg.InsertTagsetCacheSize, cfg.CacheEntryTTL())
	queryPipeline := query.New(pool.DB(), tagsets)

	sysCtx := sys.New(cfg, pool, tagsets, ingestPipeline, queryPipeline)

	router := mux.NewRouter()
	routes.SetupRoutes(router, sysCtx)

	housekeepWorker := housekeeping.New(pool.DB(), tagsets, cfg.DataRetentionPeriod())

	app := &App{
		Sys: sysCtx,
		Server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute, // streamed query responses can run long
		},
		refreshSched: &scheduler.Scheduler{
			Name:     "tagset-cache-refresh",
			Interval: cfg.TagsetCacheUpdateInterval,
			Timeout:  cfg.TagsetCacheUpdateTimeout,
			Task:     tagsets.Refresh,
		},
		housekeepSched: &scheduler.Scheduler{
			Name:     "housekeeping",
			Interval: cfg.HousekeepingInterval,
			Timeout:  cfg.HousekeepingTimeout,
			Task:     housekeepWorker.Run,
		},
	}
	return app, nil
}

// Run starts the background schedulers and serves HTTP until ctx is
// canceled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.refreshSched.Run(ctx)
	go a.housekeepSched.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening on %s", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the database pool. Call after Run returns.
func (a *App) Close() error {
	return a.Sys.DB.Close()
}
