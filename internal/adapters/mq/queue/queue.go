// Package queue buffers inbound chat messages between a gateway's receive
// loop and the workers that answer them.
package queue

import (
	"context"
	"sync"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/pkg/metrics"
)

const defaultCapacity = 1000

// Message is the payload flowing through the queue.
type Message = chat.Message

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds msg without blocking. It returns false when the queue is
	// full or closed.
	Enqueue(ctx context.Context, msg Message) bool

	// Dequeue returns a channel that yields messages until the queue is
	// closed and drained.
	Dequeue(ctx context.Context) <-chan Message

	// Len returns the number of buffered messages.
	Len() int

	// Close stops accepting messages. Buffered messages are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds msg to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, msg Message) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}

	select {
	case q.messages <- msg:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.messages))
		return true
	default:
		return false
	}
}

// Dequeue returns the queue's channel. Every consumer reads the same
// buffer, so capacity is exact. The channel closes after Close once drained.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Message {
	return q.messages
}

// Len returns the number of buffered messages.
func (q *InMemoryQueue) Len() int {
	return len(q.messages)
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
