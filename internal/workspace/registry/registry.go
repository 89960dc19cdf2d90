// Package registry holds the process-lifetime mapping from workspace name to identity.
// The provisioner registers workspaces; the change mirror resolves watcher events through it.
// Entries are never evicted.
package registry

import (
	"sync"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

// Entry is one registered workspace.
type Entry struct {
	Identity domain.Identity
	// Fields is the legacy positional form of Identity.
	Fields []string
}

// Registry is a concurrency-safe in-memory workspace table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Register stores id under id.Name, replacing any earlier entry for that name.
func (r *Registry) Register(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id.Name] = Entry{Identity: id, Fields: id.Fields()}
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Len returns the number of registered workspaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// LockName acquires the provisioning lock for name and returns its release function.
// Fresh provisioning of one name is serialized; different names proceed in parallel.
func (r *Registry) LockName(name string) (unlock func()) {
	r.locksMu.Lock()
	m, ok := r.locks[name]
	if !ok {
		m = &sync.Mutex{}
		r.locks[name] = m
	}
	r.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}
