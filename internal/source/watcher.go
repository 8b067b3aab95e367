// internal/source/watcher.go
package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arbiterhq/arbiter/internal/catalog"
	"github.com/arbiterhq/arbiter/internal/compiler"
	"github.com/arbiterhq/arbiter/internal/scope"
)

/*
 * Bundle hot reload.
 *
 * Watches the bundle directory and reloads the full directory on any
 * write/create/remove/rename touching a YAML file. Editors produce bursts of
 * events per save, so events are debounced: a reload runs only after the
 * directory has been quiet for the debounce window.
 *
 * Reload is all-or-nothing per directory: a bundle that fails to decode
 * leaves the previously installed definitions in place.
 */

const debounceWindow = 250 * time.Millisecond

// Reloader loads bundles into the registry and catalog, invalidating the
// compilation cache after each successful install.
type Reloader struct {
	dir      string
	registry *scope.Registry
	catalog  *catalog.Memory
	cache    *compiler.Cache
	logger   *slog.Logger
}

// NewReloader wires a reloader. Catalog and cache may be nil when the caller
// only maintains definitions.
func NewReloader(dir string, registry *scope.Registry, cat *catalog.Memory, cache *compiler.Cache, logger *slog.Logger) (*Reloader, error) {
	if dir == "" {
		return nil, fmt.Errorf("bundle directory cannot be empty")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{dir: dir, registry: registry, catalog: cat, cache: cache, logger: logger}, nil
}

// Load performs one full load of the bundle directory.
func (r *Reloader) Load() error {
	bundles, err := LoadDir(r.dir)
	if err != nil {
		return err
	}

	if r.catalog != nil {
		for _, bundle := range bundles {
			for _, op := range bundle.Operations {
				if err := r.catalog.Register(op); err != nil {
					return fmt.Errorf("registering operation %s: %w", op.FullCode(), err)
				}
			}
		}
	}

	grouped := GroupByTenant(bundles)
	policies := 0
	for tenantID, defs := range grouped {
		r.registry.Replace(tenantID, defs)
		policies += len(defs)
	}
	if r.cache != nil {
		r.cache.InvalidateAll()
	}

	r.logger.Info("loaded policy bundles",
		"dir", r.dir,
		"bundles", len(bundles),
		"tenants", len(grouped),
		"policies", policies,
	)
	return nil
}

// Watch blocks until ctx is cancelled, reloading on filesystem changes.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating bundle watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watching bundle directory %s: %w", r.dir, err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("bundle watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if err := r.Load(); err != nil {
				// Previous definitions stay installed on a failed reload.
				r.logger.Error("bundle reload failed", "error", err)
			}
		}
	}
}

func relevantEvent(event fsnotify.Event) bool {
	ext := filepath.Ext(event.Name)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
