package chat

import (
	"context"
	"sync"
	"time"

	"roomchat/internal/protocol"
)

// DefaultDequeueTimeout bounds a single Dequeue wait so a delivery loop can
// periodically re-check its stop conditions.
const DefaultDequeueTimeout = time.Second

// Queue is a FIFO of pending outbound messages for one user.
//
// Producers (room broadcasts running on other sessions' goroutines) call
// Enqueue; the owning receiver session drains it with Dequeue.  A single
// mutex guards the slice.  Availability is signalled through a one-slot
// token channel: Enqueue posts a token, and a Dequeue that leaves items
// behind re-posts it.  Because the token is buffered, a post that happens
// before the consumer starts waiting is never lost.
type Queue struct {
	mu    sync.Mutex
	items []protocol.Message
	avail chan struct{}
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{avail: make(chan struct{}, 1)}
}

// Enqueue appends msg to the tail and wakes one waiting Dequeue.
func (q *Queue) Enqueue(msg protocol.Message) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
}

// Dequeue removes and returns the head of the queue, waiting up to timeout
// for one to become available.  It returns false on timeout or when ctx is
// done.  A non-positive timeout uses DefaultDequeueTimeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (protocol.Message, bool) {
	if timeout <= 0 {
		timeout = DefaultDequeueTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if msg, ok := q.take(); ok {
			return msg, true
		}
		select {
		case <-q.avail:
		case <-timer.C:
			return protocol.Message{}, false
		case <-ctx.Done():
			return protocol.Message{}, false
		}
	}
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) take() (protocol.Message, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return protocol.Message{}, false
	}
	msg := q.items[0]
	q.items[0] = protocol.Message{}
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()

	if more {
		q.signal()
	}
	return msg, true
}

func (q *Queue) signal() {
	select {
	case q.avail <- struct{}{}:
	default:
	}
}
