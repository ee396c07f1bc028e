// Package watch reports debounced changes to a single file.
package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher calls onChange after the watched file was created, written,
// removed or renamed, at most once per debounce window.
type FileWatcher struct {
	file     string
	watcher  *fsnotify.Watcher
	onChange func()
	logger   zerolog.Logger

	refreshMu    sync.Mutex
	refreshTimer *time.Timer
	refreshDelay time.Duration

	// callbackMu is held while onChange runs; Close takes it to wait for an
	// in-flight callback.
	callbackMu sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewFileWatcher starts watching path. The parent directory must exist; the
// file itself may appear later.
func NewFileWatcher(path string, debounce time.Duration, onChange func(), logger zerolog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FileWatcher{
		file:         filepath.Clean(path),
		watcher:      watcher,
		onChange:     onChange,
		logger:       logger,
		refreshDelay: debounce,
		done:         make(chan struct{}),
	}

	if err := watcher.Add(filepath.Dir(w.file)); err != nil {
		watcher.Close()
		return nil, err
	}

	if _, err := os.Stat(w.file); err == nil {
		if err := watcher.Add(w.file); err != nil {
			w.logger.Debug().Err(err).Str("file", w.file).Msg("could not watch file directly")
		}
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops the watcher and any pending callback. A callback that is
// already running finishes before Close returns.
func (w *FileWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.refreshMu.Lock()
		if w.refreshTimer != nil {
			w.refreshTimer.Stop()
			w.refreshTimer = nil
		}
		w.refreshMu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()

		w.callbackMu.Lock()
		w.callbackMu.Unlock()
	})
	return w.closeErr
}

func (w *FileWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Str("file", w.file).Msg("watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.file {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.schedule()
	}
}

func (w *FileWatcher) schedule() {
	select {
	case <-w.done:
		return
	default:
	}

	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	if w.refreshTimer != nil {
		w.refreshTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.refreshDelay, func() {
		w.callbackMu.Lock()
		select {
		case <-w.done:
			w.callbackMu.Unlock()
			return
		default:
		}
		w.onChange()
		w.callbackMu.Unlock()

		w.refreshMu.Lock()
		if w.refreshTimer == timer {
			w.refreshTimer = nil
		}
		w.refreshMu.Unlock()
	})

	w.refreshTimer = timer
}
