// Package joblock provides in-process advisory locks keyed by job name,
// preventing re-entrant execution of periodic tasks. This is not a
// distributed lock: it protects nothing across process instances.
package joblock

import "sync"

// ErrBusy is reported by Do when the named lock is already held.
type busyError struct{ name string }

func (e busyError) Error() string { return "job " + e.name + " is already running" }

// IsBusy reports whether err came from a lock that was already held.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// Registry tracks a busy flag per job name.
type Registry struct {
	mu   sync.Mutex
	busy map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{busy: make(map[string]bool)}
}

// TryAcquire marks name busy and returns true, or returns false immediately
// if it is already busy. It never blocks.
func (r *Registry) TryAcquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.busy[name] {
		return false
	}
	r.busy[name] = true
	return true
}

// Release unconditionally clears the busy flag for name.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, name)
}

// Do runs fn while holding the named lock, releasing it on every exit path
// including panics. If the lock is held it returns a busy error without
// calling fn.
func (r *Registry) Do(name string, fn func() error) error {
	if !r.TryAcquire(name) {
		return busyError{name: name}
	}
	defer r.Release(name)
	return fn()
}
