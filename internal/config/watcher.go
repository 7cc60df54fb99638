package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the configuration file in development so cache TTLs
// and limits can be tuned without a restart. Outside development it is a
// passive holder of the initial configuration.
type Watcher struct {
	mu        sync.RWMutex
	current   *Config
	path      string
	callbacks []func(*Config)
	logger    *zap.Logger
	fs        *fsnotify.Watcher
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewWatcher creates the watcher. Hot reloading only activates in the
// development environment and when a config file path is known.
func NewWatcher(initial *Config, path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		current: initial,
		path:    path,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	if initial.Environment != Development || path == "" {
		return w, nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode would go quiet.
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}
	w.fs = fs
	go w.loop()
	logger.Info("config hot reload enabled", zap.String("file", path))
	return w, nil
}

// Current returns the latest configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers a callback invoked with each successfully reloaded
// configuration.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops the watch loop. Safe to call more than once.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watcher) loop() {
	defer w.fs.Close()

	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep the last good configuration.
		w.logger.Warn("config reload failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("file", w.path))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
