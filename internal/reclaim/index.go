// Package reclaim indexes live reclaim tickets by player identity so a
// reconnecting player is routed back to the room holding their seat.
package reclaim

import (
	"context"
	"sync"
	"time"
)

type Index interface {
	Put(ctx context.Context, identity, room string, ttl time.Duration) error
	// Lookup returns the room holding a ticket for identity, or "" if none.
	Lookup(ctx context.Context, identity string) (string, error)
	Delete(ctx context.Context, identity, room string) error
}

type memoryEntry struct {
	room    string
	expires time.Time
}

// MemoryIndex is the single-process Index.
type MemoryIndex struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryIndex) Put(_ context.Context, identity, room string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[identity] = memoryEntry{room: room, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryIndex) Lookup(_ context.Context, identity string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[identity]
	if !ok {
		return "", nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, identity)
		return "", nil
	}
	return e.room, nil
}

// Delete removes the entry only if it still points at room, so a late delete
// from an old room cannot drop a newer ticket.
func (m *MemoryIndex) Delete(_ context.Context, identity, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[identity]; ok && e.room == room {
		delete(m.entries, identity)
	}
	return nil
}
