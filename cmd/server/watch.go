package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// ConfigWatcher reloads the config file when it changes and hands every
// valid result to apply. Invalid edits are logged and ignored.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	apply    func(*Config)
	debounce time.Duration
}

// NewConfigWatcher creates a watcher for path.
func NewConfigWatcher(path string, apply func(*Config)) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &ConfigWatcher{
		path:     absPath,
		watcher:  watcher,
		apply:    apply,
		debounce: reloadDebounce,
	}, nil
}

// Run watches until ctx is canceled.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	// Watch the directory so editors that replace the file are noticed.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher error: %v", err)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Printf("config reload failed, keeping current settings: %v", err)
		return
	}
	log.Printf("config reloaded from %s", w.path)
	w.apply(cfg)
}
