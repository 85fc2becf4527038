package registry

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"covenant/internal/manifest"
)

// Watcher invalidates a registry's directory cache as soon as a manifest
// file changes on disk. The mtime revalidation in the registry already
// catches stale state on the next access; the watcher exists for
// long-running processes that want invalidation between accesses too.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher creates a watcher bound to the given registry.
func NewWatcher(registry *Registry, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{registry: registry, watcher: fsw, logger: logger}, nil
}

// Watch adds a manifest directory to the watch set.
func (w *Watcher) Watch(dir string) error {
	return w.watcher.Add(dir)
}

// Run processes filesystem events until the context is canceled or the
// underlying watcher closes. Events for non-manifest files are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !manifest.IsManifestFile(filepath.Base(event.Name)) {
				continue
			}
			dir := filepath.Dir(event.Name)
			w.registry.Invalidate(dir)
			w.logger.Debug("manifest change invalidated cache",
				"dir", dir,
				"file", filepath.Base(event.Name),
				"op", event.Op.String())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("manifest watcher error", "error", err)
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
