// Package metrics provides a minimal atomic-counter registry exposed
// as JSON over gin, in lieu of a Prometheus client dependency (see
// DESIGN.md's "Skipped dependency" note on why client_golang was
// skipped for this gateway).
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Registry holds named counters and gauges, each created on first
// use. Lookup takes a read lock (a write lock only on creation); the
// value itself is updated atomically (atomic.Int64). Values are
// enumerated only on scrape.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{counters: make(map[string]*atomic.Int64)}
}

func (r *Registry) counter(name string) *atomic.Int64 {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c
	}
	c = new(atomic.Int64)
	r.counters[name] = c
	return c
}

// Inc increments the named counter by one, creating it on first use.
// A nil Registry is a valid no-op receiver, so components may carry an
// optional *Registry without every caller nil-checking it.
func (r *Registry) Inc(name string) {
	if r == nil {
		return
	}
	r.counter(name).Add(1)
}

// Add increments the named counter by delta. See Inc re: nil receiver.
func (r *Registry) Add(name string, delta int64) {
	if r == nil {
		return
	}
	r.counter(name).Add(delta)
}

// Set overwrites a named gauge's value. See Inc re: nil receiver.
func (r *Registry) Set(name string, value int64) {
	if r == nil {
		return
	}
	r.counter(name).Store(value)
}

// Snapshot returns a point-in-time copy of every counter's value.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Load()
	}
	return out
}

// RegisterRoute exposes the registry's snapshot as JSON at path on engine.
func RegisterRoute(engine *gin.Engine, path string, registry *Registry) {
	engine.GET(path, func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.Snapshot())
	})
}
