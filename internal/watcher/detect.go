package watcher

import (
	"os"
)

// detect calls onChange if the file was modified since the last check.
func (w *Watcher) detect() {
	w.mu.RLock()
	path := w.path
	last := w.lastModTime
	w.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		w.log.Debug("stat failed", "error", err)
		return
	}

	mod := info.ModTime()
	if !mod.After(last) {
		return
	}

	w.mu.Lock()
	w.lastModTime = mod
	w.mu.Unlock()

	w.log.Info("configuration file changed", "modified", mod)
	w.onChange()
}
