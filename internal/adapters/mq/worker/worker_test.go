package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/internal/adapters/mq/queue"
	"github.com/okian/wiglebot/internal/adapters/mq/worker"
	"github.com/okian/wiglebot/pkg/logger"
)

type recordingHandler struct {
	mu      sync.Mutex
	handled map[string]int
	fail    map[string]error
	panics  map[string]bool
	got     chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		handled: make(map[string]int),
		fail:    make(map[string]error),
		panics:  make(map[string]bool),
		got:     make(chan string, 1024),
	}
}

func (h *recordingHandler) Handle(_ context.Context, msg chat.Message) error {
	h.mu.Lock()
	h.handled[msg.ID]++
	err := h.fail[msg.ID]
	boom := h.panics[msg.ID]
	h.mu.Unlock()
	h.got <- msg.ID
	if boom {
		panic("handler exploded on " + msg.ID)
	}
	return err
}

func (h *recordingHandler) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handled[id]
}

func (h *recordingHandler) wait(n int, timeout time.Duration) []string {
	var ids []string
	deadline := time.After(timeout)
	for len(ids) < n {
		select {
		case id := <-h.got:
			ids = append(ids, id)
		case <-deadline:
			return ids
		}
	}
	return ids
}

func message(id string) chat.Message {
	return chat.Message{ID: id, RoomID: "!room", SenderID: "@alice", Body: "!help"}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		_ = logger.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		h := newRecordingHandler()
		w := worker.NewInMemoryWorker(q, h, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		convey.Convey("When a message is queued", func() {
			convey.So(q.Enqueue(ctx, message("m1")), convey.ShouldBeTrue)

			convey.Convey("Then the handler receives it once", func() {
				convey.So(h.wait(1, time.Second), convey.ShouldResemble, []string{"m1"})
				convey.So(h.count("m1"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the handler fails", func() {
			h.fail["m2"] = errors.New("send failed")
			q.Enqueue(ctx, message("m2"))
			q.Enqueue(ctx, message("m3"))

			convey.Convey("Then later messages are still processed", func() {
				convey.So(h.wait(2, time.Second), convey.ShouldResemble, []string{"m2", "m3"})
			})
		})

		convey.Convey("When the handler panics", func() {
			h.panics["boom"] = true
			q.Enqueue(ctx, message("boom"))
			q.Enqueue(ctx, message("after"))

			convey.Convey("Then the worker survives", func() {
				convey.So(h.wait(2, time.Second), convey.ShouldResemble, []string{"boom", "after"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops and a second call is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logger.Init()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, queue.NewInMemoryQueue(), newRecordingHandler())

			convey.Convey("Then it picks a default size", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing many concurrent messages", func() {
			const total = 100
			q := queue.NewInMemoryQueue(queue.WithCapacity(total))
			h := newRecordingHandler()
			pool := worker.NewPool(4, q, h, worker.WithPoolLogger(logger.Nop()))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(producer int) {
					defer wg.Done()
					for j := 0; j < total/5; j++ {
						q.Enqueue(ctx, message(fmt.Sprintf("m-%d-%d", producer, j)))
					}
				}(i)
			}
			wg.Wait()

			ids := h.wait(total, 5*time.Second)

			convey.Convey("Then every message is handled exactly once", func() {
				convey.So(len(ids), convey.ShouldEqual, total)
				seen := make(map[string]bool, total)
				for _, id := range ids {
					convey.So(seen[id], convey.ShouldBeFalse)
					seen[id] = true
				}
			})
		})

		convey.Convey("When shutting down with messages still queued", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(10))
			h := newRecordingHandler()
			pool := worker.NewPool(2, q, h)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			for i := 0; i < 5; i++ {
				q.Enqueue(ctx, message(fmt.Sprintf("q-%d", i)))
			}
			pool.Start(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then the backlog is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(len(h.wait(5, time.Second)), convey.ShouldEqual, 5)
			})
		})
	})
}

func TestHandlerFunc(t *testing.T) {
	convey.Convey("Given a HandlerFunc", t, func() {
		var got string
		h := worker.HandlerFunc(func(_ context.Context, msg chat.Message) error {
			got = msg.ID
			return nil
		})

		convey.Convey("Then Handle calls through", func() {
			convey.So(h.Handle(context.Background(), message("x")), convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, "x")
		})
	})
}
