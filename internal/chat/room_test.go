package chat_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/chat"
	"roomchat/internal/protocol"
)

func TestRoom_Membership(t *testing.T) {
	room := chat.NewRoom("general")
	alice := chat.NewUser("alice")
	bob := chat.NewUser("bob")

	assert.Equal(t, "general", room.Name())

	room.AddMember(alice)
	room.AddMember(alice)
	assert.Equal(t, 1, room.Len())
	assert.True(t, room.Has(alice))

	room.RemoveMember(bob)
	assert.Equal(t, 1, room.Len())

	room.RemoveMember(alice)
	room.RemoveMember(alice)
	assert.Equal(t, 0, room.Len())
	assert.False(t, room.Has(alice))
}

// Random add/remove sequences leave the same set a plain model would.
func TestRoom_MembershipMatchesModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := make([]*chat.User, 6)
	for i := range users {
		users[i] = chat.NewUser(fmt.Sprintf("user%d", i))
	}

	for round := 0; round < 50; round++ {
		room := chat.NewRoom("model")
		model := make(map[*chat.User]bool)
		for step := 0; step < 40; step++ {
			u := users[rng.Intn(len(users))]
			if rng.Intn(2) == 0 {
				room.AddMember(u)
				model[u] = true
			} else {
				room.RemoveMember(u)
				delete(model, u)
			}
		}
		require.Equal(t, len(model), room.Len())
		for _, u := range users {
			assert.Equal(t, model[u], room.Has(u))
		}
	}
}

func TestRoom_Broadcast(t *testing.T) {
	tests := []struct {
		name      string
		members   []string
		sender    string
		wantCount int
	}{
		{name: "empty room", members: nil, sender: "alice", wantCount: 0},
		{name: "only sender", members: []string{"alice"}, sender: "alice", wantCount: 0},
		{name: "sender and two others", members: []string{"alice", "bob", "carol"}, sender: "alice", wantCount: 2},
		{name: "sender not a member", members: []string{"bob", "carol"}, sender: "alice", wantCount: 2},
		{name: "duplicate sender names all skipped", members: []string{"alice", "alice", "bob"}, sender: "alice", wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := chat.NewRoom("general")
			users := make([]*chat.User, 0, len(tt.members))
			for _, name := range tt.members {
				u := chat.NewUser(name)
				users = append(users, u)
				room.AddMember(u)
			}

			n := room.Broadcast(tt.sender, "hi: there")
			assert.Equal(t, tt.wantCount, n)

			for _, u := range users {
				if u.Name == tt.sender {
					assert.Equal(t, 0, u.Queue.Len(), "sender %s got its own message", u.Name)
					continue
				}
				require.Equal(t, 1, u.Queue.Len())
				msg, ok := u.Queue.Dequeue(context.Background(), 10*time.Millisecond)
				require.True(t, ok)
				assert.Equal(t, protocol.TagDelivery, msg.Tag)
				assert.Equal(t, "general:"+tt.sender+":hi: there", msg.Data)
			}
		})
	}
}

func TestRoom_BroadcastRacesMembership(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	room := chat.NewRoom("busy")
	stable := chat.NewUser("stable")
	room.AddMember(stable)

	const broadcasts = 500
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < broadcasts; i++ {
			room.Broadcast("sender", fmt.Sprintf("msg-%d", i))
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			u := chat.NewUser(fmt.Sprintf("churn%d", w))
			for i := 0; i < 200; i++ {
				room.AddMember(u)
				room.RemoveMember(u)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 1, room.Len())
	require.Equal(t, broadcasts, stable.Queue.Len())
	for i := 0; i < broadcasts; i++ {
		msg, ok := stable.Queue.Dequeue(context.Background(), 10*time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("busy:sender:msg-%d", i), msg.Data)
	}
}
