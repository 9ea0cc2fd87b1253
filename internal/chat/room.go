package chat

import (
	"sync"

	"roomchat/internal/protocol"
)

// Room is a named set of subscribed users.
//
// Membership changes and broadcasts are serialised by the room's own mutex,
// so a broadcast never observes a half-added or half-removed member, and
// unrelated rooms never contend with each other.
type Room struct {
	name string

	mu      sync.Mutex
	members map[*User]struct{}
}

// NewRoom returns an empty room.
func NewRoom(name string) *Room {
	return &Room{
		name:    name,
		members: make(map[*User]struct{}),
	}
}

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// AddMember inserts u.  Adding a present member is a no-op.
func (r *Room) AddMember(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[u] = struct{}{}
}

// RemoveMember removes u if present.  Removing an absent member is a no-op.
func (r *Room) RemoveMember(u *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, u)
}

// Has reports whether u is a member.
func (r *Room) Has(u *User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[u]
	return ok
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcast queues a delivery of text on every member whose name differs
// from sender and returns how many members it reached.  Exclusion is by
// username, so every member logged in under the sender's name is skipped.
func (r *Room) Broadcast(sender, text string) int {
	msg := protocol.New(protocol.TagDelivery, protocol.FormatDelivery(r.name, sender, text))

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for u := range r.members {
		if u.Name == sender {
			continue
		}
		u.Queue.Enqueue(msg)
		n++
	}
	return n
}
