package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/specialistvlad/livexpr"
	"github.com/specialistvlad/livexpr/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	outMu   sync.Mutex
	logger  *slog.Logger
	config  *Config
	catalog *livexpr.Catalog
	options *livexpr.Options
}

// NewApp is the constructor for the main application. It loads the policy
// and panics when it is invalid, since that is a startup error.
func NewApp(outW io.Writer, cfg *Config, modules ...livexpr.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	catalog := livexpr.NewCatalog().Use(modules...)
	logger.Debug("All modules registered.", "count", len(modules))

	opts := livexpr.NewOptions()
	if len(cfg.PolicyPaths) > 0 {
		loaded, err := livexpr.LoadOptions(ctx, catalog, cfg.PolicyPaths...)
		if err != nil {
			panic(fmt.Errorf("failed to load policy: %w", err))
		}
		opts = loaded
	}
	opts.Logger = logger
	opts.TraceEvents = cfg.Trace

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		catalog: catalog,
		options: opts,
	}
}

// Options returns the loaded observer options. This is primarily for testing.
func (a *App) Options() *livexpr.Options {
	return a.options
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.outW, format, args...)
}
