// Package presence tracks which connections are logged in and as whom.
// The registry is a passive state object owned by the relay engine; it
// never touches the transport.
package presence

import (
	"sync"

	"walkie/internal/models"
)

type entry struct {
	connID   string
	username string
	time     string
}

// Registry maps connection IDs to (username, loginTime). Entries keep
// insertion order so the presence snapshot is stable, oldest login first.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// OnLogin upserts the entry for the connection. A repeated login on the
// same connection updates the identity in place, keeping its position.
// Duplicate usernames across connections are allowed.
func (r *Registry) OnLogin(connID, username, time string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[connID]; ok {
		r.entries[i].username = username
		r.entries[i].time = time
		return
	}

	r.index[connID] = len(r.entries)
	r.entries = append(r.entries, entry{connID: connID, username: username, time: time})
}

// OnDisconnect removes the entry for the connection, a no-op if there is
// none (the connection never logged in).
func (r *Registry) OnDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[connID]
	if !ok {
		return
	}

	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	delete(r.index, connID)
	for j := i; j < len(r.entries); j++ {
		r.index[r.entries[j].connID] = j
	}
}

// Username returns the identity of the connection, if it logged in.
func (r *Registry) Username(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[connID]
	if !ok {
		return "", false
	}
	return r.entries[i].username, true
}

// Snapshot returns the current presence list in login order.
func (r *Registry) Snapshot() []models.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.OnlineUser, len(r.entries))
	for i, e := range r.entries {
		users[i] = models.OnlineUser{Username: e.username, Time: e.time}
	}
	return users
}
