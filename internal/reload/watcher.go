// Package reload re-reads the configuration while the exporter runs, on
// file change or SIGHUP.
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the file to watch.
	ConfigPath string

	// PollInterval defaults to 5 seconds.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// fileStamp identifies one version of the file. Size catches rewrites
// within the modification time granularity of the filesystem.
type fileStamp struct {
	mod  time.Time
	size int64
}

// Watcher polls a file and signals when it changes. Changes that arrive
// while a signal is pending are coalesced.
type Watcher struct {
	cfg     WatcherConfig
	changes chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher. Call Start to begin polling.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Changes receives a value after the file was modified.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Stop ends polling and waits for the goroutine. Safe to call more than
// once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	last, _ := w.stat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current, ok := w.stat()
			if !ok || current == last {
				continue
			}
			last = current
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// stat returns the current stamp. A missing file reports false so an
// editor's delete-and-rename does not count as a change.
func (w *Watcher) stat() (fileStamp, bool) {
	info, err := os.Stat(w.cfg.ConfigPath)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{mod: info.ModTime(), size: info.Size()}, true
}
