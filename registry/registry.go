// Package registry tracks which worker instances are alive. Workers
// register themselves via periodic heartbeats; a sweeper evicts entries
// that have gone silent for longer than the liveness window.
package registry

import (
	"sync"
	"time"
)

// Clock provides the current time. Injected for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// LivenessRegistry is a concurrent map of worker id to last heartbeat.
// All methods are safe for arbitrary concurrent use. No lock is held
// across any blocking call.
type LivenessRegistry struct {
	mu      sync.RWMutex
	workers map[string]time.Time
	clock   Clock
}

// RegistryOption configures the registry
type RegistryOption func(*LivenessRegistry)

// WithClock sets the time source, for tests.
func WithClock(clock Clock) RegistryOption {
	return func(r *LivenessRegistry) {
		r.clock = clock
	}
}

// NewLivenessRegistry creates an empty registry.
func NewLivenessRegistry(options ...RegistryOption) *LivenessRegistry {
	r := &LivenessRegistry{
		workers: make(map[string]time.Time),
		clock:   systemClock{},
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Register records a heartbeat for the worker. Registering an existing id
// refreshes its timestamp; there is never more than one entry per id.
func (r *LivenessRegistry) Register(id string) {
	now := r.clock.Now()
	r.mu.Lock()
	r.workers[id] = now
	r.mu.Unlock()
}

// Unregister removes the worker. Removing an absent id is a no-op.
func (r *LivenessRegistry) Unregister(id string) {
	r.mu.Lock()
	delete(r.workers, id)
	r.mu.Unlock()
}

// LastHeartbeat returns the worker's last heartbeat time, and whether the
// worker is currently registered.
func (r *LivenessRegistry) LastHeartbeat(id string) (time.Time, bool) {
	r.mu.RLock()
	ts, ok := r.workers[id]
	r.mu.RUnlock()
	return ts, ok
}

// Count returns the number of registered workers.
func (r *LivenessRegistry) Count() int {
	r.mu.RLock()
	n := len(r.workers)
	r.mu.RUnlock()
	return n
}

// Snapshot returns an independent copy of the registry contents. Later
// mutations of the registry are not visible through the returned map.
func (r *LivenessRegistry) Snapshot() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]time.Time, len(r.workers))
	for id, ts := range r.workers {
		snapshot[id] = ts
	}
	return snapshot
}

// Stale returns the ids whose last heartbeat is older than the given
// window, measured from the registry's clock.
func (r *LivenessRegistry) Stale(window time.Duration) []string {
	cutoff := r.clock.Now().Add(-window)

	var stale []string
	for id, ts := range r.Snapshot() {
		if ts.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}
