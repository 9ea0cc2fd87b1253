package chat_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/chat"
	"roomchat/internal/protocol"
)

func TestQueue_FIFO(t *testing.T) {
	q := chat.NewQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(protocol.New(protocol.TagDelivery, strconv.Itoa(i)))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		msg, ok := q.Dequeue(context.Background(), 100*time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, strconv.Itoa(i), msg.Data)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DequeueTimesOut(t *testing.T) {
	q := chat.NewQueue()
	const timeout = 150 * time.Millisecond

	start := time.Now()
	_, ok := q.Dequeue(context.Background(), timeout)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, timeout-10*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestQueue_DequeueStopsOnContext(t *testing.T) {
	q := chat.NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, ok := q.Dequeue(ctx, 5*time.Second)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestQueue_DequeueWakesOnEnqueue(t *testing.T) {
	q := chat.NewQueue()
	got := make(chan protocol.Message, 1)
	go func() {
		msg, ok := q.Dequeue(context.Background(), 5*time.Second)
		if ok {
			got <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(protocol.New(protocol.TagDelivery, "general:alice:hi"))

	select {
	case msg := <-got:
		assert.Equal(t, "general:alice:hi", msg.Data)
	case <-time.After(time.Second):
		t.Fatal("dequeue was not woken by enqueue")
	}
}

// Every enqueued message comes out exactly once, and messages from one
// producer keep their relative order.
func TestQueue_ConcurrentProducers(t *testing.T) {
	const (
		producers   = 8
		perProducer = 250
		total       = producers * perProducer
	)
	q := chat.NewQueue()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(protocol.New(protocol.TagDelivery, fmt.Sprintf("%d:%d", p, i)))
			}
		}(p)
	}

	seen := make(map[string]bool, total)
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for len(seen) < total {
		msg, ok := q.Dequeue(context.Background(), 2*time.Second)
		require.True(t, ok, "queue ran dry after %d messages", len(seen))
		require.False(t, seen[msg.Data], "duplicate %s", msg.Data)
		seen[msg.Data] = true

		p, i := splitPair(t, msg.Data)
		assert.Greater(t, i, last[p], "producer %d reordered", p)
		last[p] = i
	}
	wg.Wait()

	_, ok := q.Dequeue(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
}

func splitPair(t *testing.T, s string) (int, int) {
	t.Helper()
	a, b, ok := strings.Cut(s, ":")
	require.True(t, ok)
	p, err := strconv.Atoi(a)
	require.NoError(t, err)
	i, err := strconv.Atoi(b)
	require.NoError(t, err)
	return p, i
}
