package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func msg(id string) Message {
	return Message{ID: id, RoomID: "!room", SenderID: "@alice", Body: "!help"}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, msg("event1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "event1" {
		t.Errorf("expected event1, got %v", got.ID)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if q.Capacity() != 2 {
		t.Fatalf("expected capacity 2, got %d", q.Capacity())
	}
	if !q.Enqueue(ctx, msg("event1")) || !q.Enqueue(ctx, msg("event2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, msg("event3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_DefaultCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	if q.Capacity() != defaultCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultCapacity, q.Capacity())
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, msg("event1")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	const producers, perProducer = 10, 50
	q := NewInMemoryQueue(WithCapacity(producers * perProducer))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if !q.Enqueue(ctx, msg(fmt.Sprintf("event-%d-%d", id, j))) {
					t.Errorf("enqueue %d/%d failed", id, j)
				}
			}
		}(i)
	}
	wg.Wait()

	if l := q.Len(); l != producers*perProducer {
		t.Fatalf("expected length %d, got %d", producers*perProducer, l)
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	seen := make(map[string]bool)
	for m := range q.Dequeue(ctx) {
		if seen[m.ID] {
			t.Errorf("duplicate message %s", m.ID)
		}
		seen[m.ID] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d messages, got %d", producers*perProducer, len(seen))
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, msg("event1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, msg("event2")) {
		t.Error("expected enqueue to fail after close")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	ch := q.Dequeue(ctx)
	select {
	case m, ok := <-ch:
		if !ok || m.ID != "event1" {
			t.Fatalf("expected buffered event1, got %v (ok=%v)", m.ID, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for buffered message")
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected dequeue channel to close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dequeue channel to close")
	}
}

func TestInMemoryQueue_SharedConsumers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	a, b := q.Dequeue(ctx), q.Dequeue(ctx)
	if !q.Enqueue(ctx, msg("event1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, msg("event2")) {
		t.Fatal("expected enqueue to fail while the buffer is full")
	}

	select {
	case m := <-a:
		if m.ID != "event1" {
			t.Errorf("expected event1, got %s", m.ID)
		}
	case m := <-b:
		if m.ID != "event1" {
			t.Errorf("expected event1, got %s", m.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	if !q.Enqueue(ctx, msg("event2")) {
		t.Error("expected enqueue to succeed after a consumer took a message")
	}
}
