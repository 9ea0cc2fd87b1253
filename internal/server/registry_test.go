package server_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/chat"
	"roomchat/internal/server"
)

func TestRegistry_FindOrCreate(t *testing.T) {
	reg := server.NewRegistry()

	general := reg.FindOrCreate("general")
	require.NotNil(t, general)
	assert.Equal(t, "general", general.Name())
	assert.Same(t, general, reg.FindOrCreate("general"))

	random := reg.FindOrCreate("random")
	assert.NotSame(t, general, random)
	assert.Equal(t, 2, reg.Len())
}

// Rooms outlive their members.
func TestRegistry_EmptyRoomPersists(t *testing.T) {
	reg := server.NewRegistry()
	room := reg.FindOrCreate("general")
	u := chat.NewUser("alice")
	room.AddMember(u)
	room.RemoveMember(u)

	assert.Same(t, room, reg.FindOrCreate("general"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ConcurrentFindOrCreate(t *testing.T) {
	const (
		goroutines = 64
		names      = 8
	)
	reg := server.NewRegistry()

	results := make([][]*chat.Room, goroutines)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			<-start
			rooms := make([]*chat.Room, names)
			for i := 0; i < names; i++ {
				rooms[i] = reg.FindOrCreate(fmt.Sprintf("room-%d", i))
			}
			results[g] = rooms
		}(g)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, names, reg.Len())
	for i := 0; i < names; i++ {
		want := results[0][i]
		for g := 1; g < goroutines; g++ {
			assert.Same(t, want, results[g][i], "room-%d created twice", i)
		}
	}
}
