// Package watcher triggers re-synchronization when corpus files change.
// Filesystem events are coalesced over a debounce window so a burst of
// edits produces a single sync run.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change burst triggers a
// sync.
const DefaultDebounce = 500 * time.Millisecond

// watchedExtensions mirrors the loader's indexable file types.
var watchedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".org":      true,
}

// Watcher observes a corpus root recursively and invokes a callback
// after changes settle.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for the corpus root.
func New(root string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, debounce: debounce, logger: logger}
}

// Run watches until the context is cancelled, calling onChange after
// each settled burst of relevant events. Callback errors are logged and
// watching continues. Returns the context error on cancellation.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching corpus", slog.String("root", w.root))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories need their own watch; errors here
				// mean the entry vanished again.
				if err := w.addRecursive(fsw, event.Name); err == nil {
					w.logger.Debug("watching new directory", slog.String("path", event.Name))
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("corpus changed",
				slog.String("path", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			if err := onChange(ctx); err != nil {
				w.logger.Error("sync after change failed", slog.String("error", err.Error()))
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// relevant reports whether the event concerns an indexable file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return watchedExtensions[strings.ToLower(filepath.Ext(event.Name))]
}

// addRecursive watches path and every non-hidden subdirectory.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}
