// Package watcher monitors the configuration file and reports changes.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/raoulx24/cl-retention/internal/config"
	"github.com/raoulx24/cl-retention/internal/fsprobe"
	"github.com/raoulx24/cl-retention/internal/logging"
)

// Watcher calls onChange after the watched file's modification time moves
// forward.
type Watcher struct {
	mu sync.RWMutex

	path     string
	mode     string
	interval time.Duration
	debounce time.Duration

	log logging.Logger

	lastModTime time.Time

	onChange func()
}

// New creates a watcher for the file at path.
func New(path string, cfg config.ReloadConfig, log logging.Logger, onChange func()) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		mode:     cfg.Method,
		interval: cfg.PollInterval,
		debounce: cfg.Debounce,
		log:      log.With("file", path),
		onChange: onChange,
	}
	if w.mode == "" {
		w.mode = "auto"
	}
	if w.interval <= 0 {
		w.interval = 5 * time.Second
	}
	return w
}

// Start chooses the watching strategy and blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if info, err := os.Stat(w.path); err == nil {
		w.mu.Lock()
		w.lastModTime = info.ModTime()
		w.mu.Unlock()
	}

	switch w.mode {
	case "fsnotify":
		return w.StartFsNotify(ctx)

	case "poll":
		w.StartPolling(ctx)
		return nil

	case "auto":
		res := fsprobe.Probe(filepath.Dir(w.path))
		if res.FsnotifySupported {
			err := w.StartFsNotify(ctx)
			if err == nil {
				return nil
			}
			w.log.Warn("fsnotify failed, falling back to polling", "error", err)
		} else {
			w.log.Warn("fsnotify disabled, falling back to polling", "reason", res.Reason)
		}
		w.StartPolling(ctx)
		return nil

	default:
		return fmt.Errorf("unknown watch mode %q", w.mode)
	}
}
