package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned when operating on a closed Watcher.
var ErrWatcherClosed = errors.New("watcher closed")

// ReloadFunc receives freshly loaded preferences, or the error that
// prevented loading them.
type ReloadFunc func(prefs Preferences, err error)

// Watcher reloads a preferences file whenever it changes on disk.
//
// The parent directory is watched rather than the file itself, because
// editors commonly save by writing a new file and renaming it into place,
// which drops a watch placed on the old inode.
type Watcher struct {
	mu sync.Mutex

	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onReload ReloadFunc
	timer    *time.Timer

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup

	// reloading is read-held while onReload runs; Close takes it to wait
	// for a callback already in flight.
	reloading sync.RWMutex
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for a burst of events to
// settle before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// NewWatcher starts watching the preferences file at path.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		path:     absPath,
		debounce: 100 * time.Millisecond,
		onReload: onReload,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher. Pending reloads are dropped and a reload already
// running finishes first, so the callback never runs after Close returns.
// Close must not be called from the callback.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.reloading.Lock()
	w.reloading.Unlock() //nolint:staticcheck // barrier for in-flight callbacks

	w.closedWg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.deliver(Preferences{}, err)
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	prefs, err := LoadPreferences(w.path)
	w.deliver(prefs, err)
}

func (w *Watcher) deliver(prefs Preferences, err error) {
	w.reloading.RLock()
	defer w.reloading.RUnlock()

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()

	if closed || w.onReload == nil {
		return
	}
	w.onReload(prefs, err)
}
