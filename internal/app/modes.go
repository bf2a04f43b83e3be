package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradeloader/internal/domain"
	"github.com/alanyoungcy/tradeloader/internal/ingest"
	"github.com/alanyoungcy/tradeloader/internal/server"
	"github.com/alanyoungcy/tradeloader/internal/server/handler"
)

// IngestMode supervises every enabled source until ctx is cancelled, or until
// every source has finished when stop_at_end is set. The ops server runs
// alongside when enabled.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode", slog.Int("sources", len(deps.Jobs)))

	var locks domain.LockManager
	if a.cfg.Supervisor.Lock {
		locks = deps.Locks
	}
	sup := ingest.NewSupervisor(deps.Jobs, ingest.SupervisorConfig{
		RetryInterval: a.cfg.Supervisor.RetryInterval.Duration,
		LockTTL:       a.cfg.Supervisor.LockTTL.Duration,
		StopAtEnd:     a.cfg.Supervisor.StopAtEnd,
	}, locks, deps.Notifier, a.logger)
	if deps.Runs != nil {
		sup.RecordRunsTo(deps.Runs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The server has nothing left to report once every source stopped.
		defer cancel()
		return sup.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sup)
	}

	return g.Wait()
}

// OnceMode runs every enabled source a single time, in parallel, with no
// retry. Idle outcomes (caught up, empty page) are not failures.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode", slog.Int("sources", len(deps.Jobs)))
	return ingest.RunAll(ctx, deps.Jobs, a.logger)
}

// startHTTPServer runs the ops server in g and shuts it down when ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, sources handler.Snapshotter) {
	srv := server.NewServer(server.Config{Port: a.cfg.Server.Port}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Status: handler.NewStatusHandler(a.cfg.Mode, sources),
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
