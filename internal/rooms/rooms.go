// Package rooms tracks which room each connection occupies and computes
// broadcast audiences. Rooms are cheap and client-named: they come into
// existence the first time a connection joins their code.
package rooms

import (
	"sync"
	"time"

	"walkie/internal/models"
)

// Manager enforces the single-room-at-a-time policy: a connection is in
// exactly one room, the default room unless it joined an explicit one.
// While inside an explicit room a connection is not addressed by default
// room broadcasts; leaving returns it to the default room.
type Manager struct {
	mu           sync.RWMutex
	current      map[string]string
	members      map[string]map[string]struct{}
	lastActivity map[string]time.Time
	now          func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		current:      make(map[string]string),
		members:      make(map[string]map[string]struct{}),
		lastActivity: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Register puts a new connection into the default room.
func (m *Manager) Register(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.place(connID, models.DefaultRoom)
}

// Unregister releases the connection's membership entirely.
func (m *Manager) Unregister(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.current[connID]
	if !ok {
		return
	}
	m.removeFrom(connID, room)
	delete(m.current, connID)
}

// Join moves the connection into roomCode, leaving whatever explicit room
// it was in. Returns the room it came from.
func (m *Manager) Join(connID, roomCode string) (prior string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prior, ok := m.current[connID]
	if !ok {
		prior = models.DefaultRoom
	} else {
		m.removeFrom(connID, prior)
	}
	m.place(connID, roomCode)
	return prior
}

// Leave removes the connection from roomCode and returns it to the default
// room. A no-op if the connection is not in roomCode.
func (m *Manager) Leave(connID, roomCode string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current[connID] != roomCode || roomCode == models.DefaultRoom {
		return false
	}
	m.removeFrom(connID, roomCode)
	m.place(connID, models.DefaultRoom)
	return true
}

// MembersOf returns the connections addressed by a broadcast to the room.
func (m *Manager) MembersOf(roomCode string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.members[roomCode]
	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

// IsMember reports whether the connection currently occupies the room.
func (m *Manager) IsMember(connID, roomCode string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current[connID] == roomCode
}

// CurrentRoom returns the room the connection occupies.
func (m *Manager) CurrentRoom(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.current[connID]
	return room, ok
}

// Touch records activity on a room so the eviction sweep spares it.
func (m *Manager) Touch(roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity[roomCode] = m.now()
}

// EvictIdle reclaims rooms that are empty and have seen no activity for
// maxIdle. The default room is never evicted. Returns the evicted codes.
func (m *Manager) EvictIdle(maxIdle time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	var evicted []string
	for room, set := range m.members {
		if room == models.DefaultRoom || len(set) > 0 {
			continue
		}
		if m.lastActivity[room].After(cutoff) {
			continue
		}
		delete(m.members, room)
		delete(m.lastActivity, room)
		evicted = append(evicted, room)
	}
	return evicted
}

// place adds connID to the room's member set. Caller holds the lock.
func (m *Manager) place(connID, roomCode string) {
	set, ok := m.members[roomCode]
	if !ok {
		set = make(map[string]struct{})
		m.members[roomCode] = set
	}
	set[connID] = struct{}{}
	m.current[connID] = roomCode
	m.lastActivity[roomCode] = m.now()
}

// removeFrom drops connID from the room's member set. A departure counts
// as activity so a freshly vacated room gets the full idle grace period
// before eviction. Caller holds the lock.
func (m *Manager) removeFrom(connID, roomCode string) {
	if set, ok := m.members[roomCode]; ok {
		delete(set, connID)
		m.lastActivity[roomCode] = m.now()
	}
}
