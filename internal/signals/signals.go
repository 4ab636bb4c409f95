// Package signals provides out-of-band run control through the filesystem.
// Creating a "stop" file in the watched signal directory cancels the
// active run, which lets an operator halt an audit without reaching the
// Skout process directly.
package signals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StopFile is the filename that requests cancellation of the active run.
const StopFile = "stop"

// ErrStopRequested is the cancellation cause when a stop file appears.
var ErrStopRequested = errors.New("stop signal received")

// Watcher monitors a signal directory and cancels a context when a stop
// file appears.
type Watcher struct {
	dir string

	mu      sync.RWMutex
	stopped bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewWatcher creates a watcher over the given signal directory, creating
// it if needed. If the filesystem watcher cannot be set up, the Watcher
// still works through ShouldStop's direct file check.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:  dir,
		done: make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - callers poll via ShouldStop
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw

	go w.watch()

	return w, nil
}

// watch monitors the signal directory for the stop file.
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == StopFile &&
				(event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				w.mu.Lock()
				w.stopped = true
				w.mu.Unlock()
			}
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldStop returns true if a stop signal has been received.
func (w *Watcher) ShouldStop() bool {
	// Also check the file directly in case the watcher missed it
	if _, err := os.Stat(filepath.Join(w.dir, StopFile)); err == nil {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// Bind cancels the returned context when a stop signal arrives. The
// signal directory is polled so a stop is noticed even when the
// filesystem watcher is unavailable.
func (w *Watcher) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-ticker.C:
				if w.ShouldStop() {
					cancel(ErrStopRequested)
					return
				}
			}
		}
	}()

	return ctx, func() { cancel(nil) }
}

// SendStop creates the stop signal file.
func (w *Watcher) SendStop() error {
	path := filepath.Join(w.dir, StopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop file and resets signal state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = false
	os.Remove(filepath.Join(w.dir, StopFile))
}

// Dir returns the watched signal directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}
