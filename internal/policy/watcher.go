package policy

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces rapid writes (editor save dances) into a
// single reload.
const debounceDelay = 200 * time.Millisecond

// Watcher reloads a policy file when it changes on disk, so a running
// scheduler picks up reviewer and routing changes without a restart.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	onReload func(Policy)
	onError  func(error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches path and calls onReload with each successfully
// parsed policy. Parse and validation failures go to onError and leave
// the previous policy in effect.
func NewWatcher(path string, onReload func(Policy), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, path: path, onReload: onReload, onError: onError}, nil
}

// Run blocks until the context is cancelled, reloading on writes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	p, err := LoadFile(w.path)
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.onReload(p)
}
