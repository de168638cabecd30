// Package configwatch reloads the tictoc config file when it changes on disk.
package configwatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/tictoc/internal/cliconfig"
	"github.com/bft-labs/tictoc/pkg/log"
)

// DefaultDebounceDelay coalesces the bursts of events editors produce.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher watches one config file and hands every successfully parsed
// version to a callback.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func(cliconfig.FileConfig)
	logger   log.Logger

	mu       sync.Mutex
	debounce *time.Timer
	stopped  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for path. A non-positive delay uses
// DefaultDebounceDelay; a nil logger discards output.
func New(path string, delay time.Duration, logger log.Logger, onChange func(cliconfig.FileConfig)) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		delay:    delay,
		onChange: onChange,
		logger:   logger,
	}
}

// Start begins watching the directory that holds the config file.
func (w *Watcher) Start(ctx context.Context) error {
	if w.onChange == nil {
		return errors.New("configwatch: callback is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchLoop(watchCtx, fsw)

	w.logger.Info("watching config file", log.String("path", w.path))
	return nil
}

// Stop ends watching. No callback runs after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	fc, err := cliconfig.LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}

	// Holding the lock keeps Stop from returning while the callback runs.
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.logger.Info("config reloaded", log.String("path", w.path))
	w.onChange(fc)
}
