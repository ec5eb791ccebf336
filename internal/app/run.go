package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/livexpr"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
)

// Run executes the main application logic.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.CheckOnly {
		a.printf("policy OK: %d path(s), dispose constructed objects by default: %t\n",
			len(a.config.PolicyPaths), a.options.DisposeConstructedObjects)
		return nil
	}

	opts := a.options
	var metrics *metricsServer
	if a.config.MetricsPort > 0 {
		var err error
		if metrics, err = newMetricsServer(); err != nil {
			return err
		}
		defer metrics.close(ctx, a)
		opts = opts.Clone()
		opts.MeterProvider = metrics.provider
	}
	obs := livexpr.New(opts)
	if metrics != nil {
		if err := metrics.start(a, obs, a.config.MetricsPort); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runNameDemo(gctx, obs) })
	g.Go(func() error { return a.runListDemo(gctx, obs) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("demonstration failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.", "cached_nodes", obs.CachedNodes(), "live_handles", obs.LiveHandles())
	return nil
}
