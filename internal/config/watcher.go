package config

import (
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher flags behavior-config changes so the REPL can reload between
// turns. Parent directories are watched so files created after startup
// are still noticed.
type Watcher struct {
	fsw     *fsnotify.Watcher
	files   map[string]struct{}
	changed atomic.Bool
	done    chan struct{}
}

// NewWatcher watches the given candidate config files.
func NewWatcher(paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:   fsw,
		files: make(map[string]struct{}, len(paths)),
		done:  make(chan struct{}),
	}

	dirs := map[string]struct{}{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			slog.Debug("config watch failed", "dir", dir, "error", err)
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := w.files[abs]; ok {
				w.changed.Store(true)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch error", "error", err)
		}
	}
}

// Changed reports whether a watched file changed since the last call,
// clearing the flag.
func (w *Watcher) Changed() bool {
	return w.changed.Swap(false)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
