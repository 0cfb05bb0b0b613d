// Package navigation keeps the shell's location history.
package navigation

import (
	"sync"

	"go.uber.org/zap"

	"blogify/application/ports"
)

// Entry is one navigation recorded by the history.
type Entry struct {
	Path   string `json:"path"`
	Reload bool   `json:"reload,omitempty"`
}

// History is an in-process stand-in for a browser tab's location. It is
// safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	location string
	entries  []Entry
	onReload []func()
	logger   *zap.Logger
}

// NewHistory starts at path.
func NewHistory(path string, logger *zap.Logger) *History {
	if path == "" {
		path = "/"
	}
	return &History{
		location: path,
		entries:  []Entry{{Path: path}},
		logger:   logger,
	}
}

// OnReload registers fn to run on every Reload, after the entry is
// recorded. A reload drops in-memory client state; callers hook the cache
// reset here.
func (h *History) OnReload(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = append(h.onReload, fn)
}

// Location returns the current path and query.
func (h *History) Location() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.location
}

// Assign moves to path.
func (h *History) Assign(path string) {
	h.mu.Lock()
	from := h.location
	h.location = path
	h.entries = append(h.entries, Entry{Path: path})
	h.mu.Unlock()

	h.logger.Debug("Navigated", zap.String("from", from), zap.String("to", path))
}

// Reload re-enters the current location.
func (h *History) Reload() {
	h.mu.Lock()
	path := h.location
	h.entries = append(h.entries, Entry{Path: path, Reload: true})
	hooks := append([]func(){}, h.onReload...)
	h.mu.Unlock()

	h.logger.Debug("Reloaded", zap.String("path", path))
	for _, fn := range hooks {
		fn()
	}
}

// Entries returns every navigation so far, oldest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry(nil), h.entries...)
}

var _ ports.Navigator = (*History)(nil)
