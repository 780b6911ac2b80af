// Package signaling tracks which users hold a live socket and relays call
// setup events between them.
package signaling

import "sync"

// Conn is a live connection that can receive named events.
type Conn interface {
	Emit(event string, payload any) error
}

// Registry maps user ids to their current connection.
// It starts empty on every process start; a user without an entry is offline.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint64]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]Conn)}
}

// Register makes c the user's current connection and returns the one it replaced, if any.
func (r *Registry) Register(userID uint64, c Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[userID]
	r.conns[userID] = c
	return prev
}

// Unregister removes the entry only while c is still the current connection,
// so a stale socket closing does not log out a newer one.
func (r *Registry) Unregister(userID uint64, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[userID]; ok && cur == c {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) Lookup(userID uint64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

func (r *Registry) Online(userID uint64) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
