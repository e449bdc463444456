// Package watch drives incremental re-analysis from filesystem events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Events receives debounced change batches. Paths are absolute. A nil
// callback is skipped.
type Events struct {
	// OnChange is invoked with files that exist after the settle window.
	OnChange func(paths []string)

	// OnRemove is invoked with files that no longer exist.
	OnRemove func(paths []string)
}

// Watcher monitors a project tree for Python file changes, batching
// rapid event bursts into one callback per settle window.
type Watcher struct {
	root     string
	excluded map[string]bool
	debounce time.Duration
	events   Events
}

// New creates a watcher for root. Directory names in excludeDirs are not
// watched. A non-positive debounce defaults to two seconds.
func New(root string, excludeDirs []string, debounce time.Duration, events Events) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	excluded := make(map[string]bool, len(excludeDirs))
	for _, dir := range excludeDirs {
		excluded[dir] = true
	}
	return &Watcher{root: root, excluded: excluded, debounce: debounce, events: events}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addRecursive(watcher, w.root); err != nil {
		return fmt.Errorf("watch: register %s: %w", w.root, err)
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	slog.Info("watching for changes", "root", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New directories need their own watch before files inside
			// them produce events.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.skipDir(filepath.Base(event.Name)) {
						_ = w.addRecursive(watcher, event.Name)
					}
					continue
				}
			}

			if !strings.HasSuffix(event.Name, ".py") {
				continue
			}
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed, removed := w.partition(pending)
			pending = make(map[string]bool)

			if len(changed) > 0 && w.events.OnChange != nil {
				w.events.OnChange(changed)
			}
			if len(removed) > 0 && w.events.OnRemove != nil {
				w.events.OnRemove(removed)
			}
		}
	}
}

// partition splits a batch into still-existing and deleted files.
func (w *Watcher) partition(pending map[string]bool) (changed, removed []string) {
	for path := range pending {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			removed = append(removed, path)
		case err == nil && !info.IsDir():
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	sort.Strings(removed)
	return changed, removed
}

// addRecursive registers root and every non-excluded directory below it.
func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (w *Watcher) skipDir(name string) bool {
	return w.excluded[name] || strings.HasPrefix(name, ".")
}
