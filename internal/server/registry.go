package server

import (
	"sync"

	"roomchat/internal/chat"
)

// Registry is the process-wide room directory.
//
// Concurrency model
// -----------------
//   - One mutex guards the name → Room map and is held only for the lookup
//     and insert in FindOrCreate.
//   - Membership and broadcast run under each Room's own lock, so unrelated
//     rooms never contend here.
//   - Rooms are created lazily and never removed, even when empty.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*chat.Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*chat.Room)}
}

// FindOrCreate returns the room called name, creating it on first use.  At
// most one Room exists per name.
func (r *Registry) FindOrCreate(name string) *chat.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[name]; ok {
		return room
	}
	room := chat.NewRoom(name)
	r.rooms[name] = room
	return room
}

// Len returns the number of rooms created so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
