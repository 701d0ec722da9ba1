// Command sigwatch runs the situational-awareness aggregator: it loads
// configuration, opens the store, seeds the gazetteer, registers the source
// plugin catalog, and runs the polling scheduler alongside the HTTP read
// API until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/sigwatch/internal/api"
	"github.com/couchcryptid/sigwatch/internal/cluster"
	"github.com/couchcryptid/sigwatch/internal/config"
	"github.com/couchcryptid/sigwatch/internal/eventbus"
	"github.com/couchcryptid/sigwatch/internal/fetcher"
	"github.com/couchcryptid/sigwatch/internal/gazetteer"
	"github.com/couchcryptid/sigwatch/internal/health"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/observability"
	"github.com/couchcryptid/sigwatch/internal/plugin"
	"github.com/couchcryptid/sigwatch/internal/scheduler"
	"github.com/couchcryptid/sigwatch/internal/sources"
	"github.com/couchcryptid/sigwatch/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sigwatch:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	gz := gazetteer.New(st, 4096)
	if _, err := gazetteer.LoadCorpusCSV(context.Background(), st, "data/gazetteer/places.csv"); err != nil {
		logger.Warn("gazetteer corpus load failed, continuing without it", "error", err)
	}

	deps := normalize.Deps{Gazetteer: gz}
	registry := plugin.NewRegistry()
	for _, p := range sources.Catalog(cfg, deps) {
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register plugin %q: %w", p.SourceID, err)
		}
	}

	watcher, err := plugin.NewWatcher(cfg.FeedPackDir, registry, deps, st, logger)
	if err != nil {
		return fmt.Errorf("build feed pack watcher: %w", err)
	}
	if err := watcher.LoadAll(); err != nil {
		logger.Warn("feed pack initial load failed", "error", err)
	}

	bus := eventbus.New(logger, metrics)
	f := fetcher.New(cfg.UserAgent, 2, 4)
	ht := health.New(st, bus, logger, metrics)
	cl := cluster.New(st, logger, metrics)

	sched := scheduler.New(st, registry, f, ht, cl, bus, logger, metrics, scheduler.Config{
		GlobalConcurrency:      cfg.GlobalConcurrency,
		ItemsRetentionDays:     cfg.ItemsRetentionDays,
		IncidentsRetentionDays: cfg.IncidentsRetentionDays,
	}, sources.VolcanoExpander(deps))

	if err := sched.RegisterPlugins(context.Background()); err != nil {
		return fmt.Errorf("register sources: %w", err)
	}

	srv := api.NewServer(cfg.HTTPAddr, api.Deps{
		Store:       st,
		Bus:         bus,
		Ready:       readinessChecker{store: st},
		Logger:      logger,
		CORSOrigins: []string{"*"},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := sched.Run(ctx); err != nil {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.Error("feed pack watcher stopped", "error", err)
		}
	}()
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("fatal component error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}

	// Give in-flight work units the grace period spec §5 allows before the
	// store is closed out from under them.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// readinessChecker reports the service ready once the store answers a
// trivial read, satisfying api.ReadinessChecker without the API package
// needing to know about AppConfig.
type readinessChecker struct {
	store *store.Store
}

func (r readinessChecker) CheckReadiness(ctx context.Context) error {
	_, err := r.store.PollingEnabled(ctx)
	return err
}
