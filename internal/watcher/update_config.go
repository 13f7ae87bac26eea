package watcher

import (
	"github.com/raoulx24/cl-retention/internal/config"
)

// UpdateConfig applies new timings. The mode is fixed once Start runs.
func (w *Watcher) UpdateConfig(cfg config.ReloadConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cfg.PollInterval > 0 {
		w.interval = cfg.PollInterval
	}
	w.debounce = cfg.Debounce
}
