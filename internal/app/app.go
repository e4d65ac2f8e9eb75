// Package app provides the top-level application lifecycle for the basisdesk
// daemon. It wires together all dependencies (engine client, stores, job
// tracker, push channel, journal, and notifications) and runs the refresh and
// push loops until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joasgard/basisdesk/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, performs the
// initial position fetch, opens the push channel, and keeps a periodic full
// refresh running until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting basisdesk",
		slog.String("engine", a.cfg.Engine.BaseURL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Initial snapshot before live updates start. A failure here is not
	// fatal: the periodic refresh retries and the push channel converges.
	if _, err := deps.Desk.FetchPositions(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial position fetch failed",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Channel.Connect(ctx)
		<-ctx.Done()
		return ctx.Err()
	})

	g.Go(func() error {
		return a.refreshLoop(ctx, deps)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// refreshLoop re-fetches the full position list on a fixed interval so the
// local collection converges even if individual push events were missed.
func (a *App) refreshLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Timing.RefreshInterval.Duration
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := deps.Desk.FetchPositions(ctx); err != nil {
				a.logger.WarnContext(ctx, "periodic refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down basisdesk")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
