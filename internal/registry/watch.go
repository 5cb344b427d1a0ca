package registry

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/melosso/portway/internal/logging"
)

// WatchOptions tunes the hot-reload watcher.
type WatchOptions struct {
	// Debounce collapses bursts of events for the same reload cycle into
	// one reloadAll call. Default 2s.
	Debounce time.Duration
	// PollInterval is the overlay-fs fallback cadence when fsnotify cannot
	// observe the mount (common with Docker bind mounts / overlay2).
	PollInterval time.Duration
}

func (o WatchOptions) withDefaults() WatchOptions {
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	return o
}

// Watch starts a background goroutine that reloads r whenever root changes,
// until stop is closed. It prefers fsnotify and falls back to mtime polling
// if the watcher cannot be established (overlay filesystems frequently
// don't deliver inotify events reliably).
func (r *Registry) Watch(stop <-chan struct{}, opts WatchOptions, log *logging.Logger) {
	opts = opts.withDefaults()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		go r.pollLoop(stop, opts, log)
		return
	}
	if err := addRecursive(w, r.root); err != nil {
		w.Close()
		go r.pollLoop(stop, opts, log)
		return
	}
	go r.fsnotifyLoop(w, stop, opts, log)
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // missing subtree, skip rather than fail the whole watch
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// fsnotifyLoop debounces bursts of events into a single reloadAll call:
// within one debounce window, multiple events for one or many files
// collapse to one reload. Reloads across files are already serialized by
// Registry.mu inside reloadAll.
func (r *Registry) fsnotifyLoop(w *fsnotify.Watcher, stop <-chan struct{}, opts WatchOptions, log *logging.Logger) {
	defer w.Close()
	var timer *time.Timer
	var timerC <-chan time.Time

	resetDebounce := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(opts.Debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create) != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			resetDebounce()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if log != nil {
				log.Errorf("registry watch error: %v", err)
			}
		case <-timerC:
			r.reloadAll()
			if log != nil {
				log.Event("registry.reload", map[string]any{"trigger": "fsnotify"})
			}
		}
	}
}

// pollLoop is the overlay-fs fallback: compare cached mtimes against a
// fresh directory walk on a fixed tick, reloading whenever anything moved.
func (r *Registry) pollLoop(stop <-chan struct{}, opts WatchOptions, log *logging.Logger) {
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	last := snapshotMtimes(r.root)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			cur := snapshotMtimes(r.root)
			if mtimesDiffer(last, cur) {
				last = cur
				r.reloadAll()
				if log != nil {
					log.Event("registry.reload", map[string]any{"trigger": "poll"})
				}
			}
		}
	}
}

func snapshotMtimes(root string) map[string]time.Time {
	out := map[string]time.Time{}
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		out[path] = info.ModTime()
		return nil
	})
	return out
}

func mtimesDiffer(a, b map[string]time.Time) bool {
	if len(a) != len(b) {
		return true
	}
	for path, t := range b {
		if !a[path].Equal(t) {
			return true
		}
	}
	return false
}
