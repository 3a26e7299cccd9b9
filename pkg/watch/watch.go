// Package watch re-runs scenarios when scenario files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaults for Watcher.
const (
	DefaultDebounce = 500 * time.Millisecond
	defaultTick     = 100 * time.Millisecond
)

// Logger is used for watcher errors.
type Logger interface {
	Print(format string, args ...any)
}

// Watcher reports changed scenario files (*.yml, *.yaml and .env) in a directory.
// Rapid changes of a file are collapsed: a file is reported once it has been quiet
// for Debounce.
type Watcher struct {
	Dir      string
	Debounce time.Duration // zero uses DefaultDebounce
	Log      Logger        // nil discards errors

	tick    time.Duration
	mu      sync.Mutex
	pending map[string]time.Time
}

// Run watches Dir until ctx is done, calling onChange with the sorted list of changed
// files. onChange runs on the watcher goroutine, changes made meanwhile are reported
// by the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, files []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	w.mu.Lock()
	w.pending = map[string]time.Time{}
	w.mu.Unlock()

	tick := w.tick
	if tick <= 0 {
		tick = defaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if w.Log != nil {
				w.Log.Print("[WARN] watcher error: %v", err)
			}
		case <-ticker.C:
			if files := w.due(time.Now()); len(files) > 0 {
				onChange(ctx, files)
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	if !Relevant(ev.Name) {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// due removes and returns files quiet for the debounce window.
func (w *Watcher) due(now time.Time) []string {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var res []string
	for name, ts := range w.pending {
		if now.Sub(ts) >= debounce {
			res = append(res, name)
			delete(w.pending, name)
		}
	}
	slices.Sort(res)
	return res
}

// Relevant reports whether a change of name affects scenarios: yaml files and the
// scenario .env. Other hidden files (editor swap files) are ignored.
func Relevant(name string) bool {
	base := filepath.Base(name)
	if base == ".env" {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".yml" || ext == ".yaml"
}
