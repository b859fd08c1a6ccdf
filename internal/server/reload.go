package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// reloadTarget is what a Reloader refreshes.
type reloadTarget interface {
	ReloadConstraints() error
}

// Reloader watches the constraint file and reloads it after changes settle.
// The parent directory is watched so editors that replace the file by
// rename are picked up.
type Reloader struct {
	watcher  *fsnotify.Watcher
	target   reloadTarget
	path     string
	logger   *zap.Logger
	debounce time.Duration
}

// NewReloader watches path on behalf of target.
func NewReloader(target reloadTarget, path string, logger *zap.Logger) (*Reloader, error) {
	if path == "" {
		return nil, fmt.Errorf("reloader: no constraint file to watch")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}
	return &Reloader{
		watcher:  watcher,
		target:   target,
		path:     abs,
		logger:   logger,
		debounce: reloadDebounce,
	}, nil
}

// Run reloads on change until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(r.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			if err := r.target.ReloadConstraints(); err != nil {
				r.logger.Error("constraint reload failed", zap.String("path", r.path), zap.Error(err))
			} else {
				r.logger.Info("constraints reloaded", zap.String("path", r.path))
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
