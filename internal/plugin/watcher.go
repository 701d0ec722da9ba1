package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/couchcryptid/sigwatch/internal/normalize"
)

// Watcher hot-reloads feed packs from a directory: on any create/write of a
// *.yaml/*.yml file it re-parses that file and re-registers its plugins
// (spec §9: "Dynamic plugin registry").
type Watcher struct {
	dir      string
	registry *Registry
	deps     normalize.Deps
	sync     SourceSync
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher builds a Watcher over dir, creating the underlying fsnotify
// watcher but not yet watching — call Start to begin. sync is the store the
// registry's in-memory changes are mirrored into, so a feed pack loaded
// after boot gets a schedule row the same way the static catalog does.
func NewWatcher(dir string, registry *Registry, deps normalize.Deps, sync SourceSync, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{dir: dir, registry: registry, deps: deps, sync: sync, logger: logger, fsw: fsw}, nil
}

// LoadAll loads every *.yaml/*.yml file already in the directory, used once
// at boot before Start begins watching for changes.
func (w *Watcher) LoadAll() error {
	matches, err := filepath.Glob(filepath.Join(w.dir, "*.y*ml"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := w.reload(context.Background(), path); err != nil {
			w.logger.Error("plugin: initial feed pack load failed", "path", path, "error", err)
		}
	}
	return nil
}

// Start begins watching w.dir and reloading on change until ctx is
// cancelled. It blocks, so callers run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isYAML(evt.Name) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(ctx, evt.Name); err != nil {
				w.logger.Error("plugin: feed pack reload failed", "path", evt.Name, "error", err)
			} else {
				w.logger.Info("plugin: feed pack reloaded", "path", evt.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("plugin: watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context, path string) error {
	plugins, err := LoadFeedPackAsPlugins(path, w.deps)
	if err != nil {
		return err
	}
	for _, p := range plugins {
		if err := w.registry.Register(p); err != nil {
			return err
		}
		if err := w.sync.RegisterSource(ctx, p.AsSource()); err != nil {
			return fmt.Errorf("plugin: register source %q: %w", p.SourceID, err)
		}
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
