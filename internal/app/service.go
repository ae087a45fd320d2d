// Package service wires a chat gateway to the command router through a
// deduplicating, bounded worker pipeline.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/wiglebot/internal/adapters/chat"
	eventqueue "github.com/okian/wiglebot/internal/adapters/mq/queue"
	workerpool "github.com/okian/wiglebot/internal/adapters/mq/worker"
	"github.com/okian/wiglebot/internal/domain/dedupe"
	"github.com/okian/wiglebot/pkg/logger"
	"github.com/okian/wiglebot/pkg/metrics"
)

const (
	defaultWorkerCount = 16
	defaultQueueSize   = 1000
	defaultDedupeSize  = 10000
	stopTimeout        = 30 * time.Second
)

// Invite outcomes for metrics.
const (
	inviteJoined = "joined"
	inviteFailed = "failed"
)

// Service receives gateway events and answers them on a worker pool.
type Service struct {
	mu sync.RWMutex

	gateway chat.Gateway
	handler workerpool.Handler

	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	cancel     context.CancelFunc

	workerCount int
	queueSize   int
	dedupeSize  int

	started bool
	logger  logger.Logger
}

var _ chat.Handler = (*Service)(nil)

// New constructs a Service that answers messages from gw with h.
func New(gw chat.Gateway, h workerpool.Handler, opts ...Option) *Service {
	s := &Service{
		gateway:     gw,
		handler:     h,
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start builds the pipeline and starts the workers. Workers outlive ctx so
// Stop can drain the backlog.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.dedupeSize > 0 {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.handler,
		workerpool.WithPoolLogger(s.logger))

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool.Start(workCtx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.String("gateway", s.gateway.Name()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Run delivers gateway events to the service until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return s.gateway.Run(ctx, s)
}

// Stop closes the queue, waits for the workers to finish the backlog and
// releases them.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping service", logger.Int("backlog", s.queue.Len()))
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "service stopped")
}

// OnMessage records msg's event id and queues it. Redelivered ids are
// dropped. When the queue is full the message is dropped and its id
// forgotten.
func (s *Service) OnMessage(ctx context.Context, msg chat.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics.RecordMessageReceived(s.gateway.Name())
	if !s.started {
		metrics.RecordMessageDropped()
		s.logger.Warn(ctx, "message before start", logger.String("message_id", msg.ID))
		return
	}

	if s.deduper != nil && msg.ID != "" && s.deduper.SeenAndRecord(ctx, msg.ID) {
		metrics.RecordMessageDuplicate()
		s.logger.Debug(ctx, "duplicate event skipped",
			logger.String("message_id", msg.ID),
			logger.String("room", msg.RoomID),
		)
		return
	}

	if !s.queue.Enqueue(ctx, msg) {
		if s.deduper != nil && msg.ID != "" {
			s.deduper.Unrecord(ctx, msg.ID)
		}
		metrics.RecordMessageDropped()
		s.logger.Warn(ctx, "queue full, message dropped",
			logger.String("message_id", msg.ID),
			logger.String("room", msg.RoomID),
			logger.Int("capacity", s.queue.Capacity()),
		)
	}
}

// OnInvite joins the room the bot was invited to.
func (s *Service) OnInvite(ctx context.Context, roomID string) {
	if err := s.gateway.JoinRoom(ctx, roomID); err != nil {
		metrics.RecordInvite(inviteFailed)
		s.logger.Warn(ctx, "join failed", logger.String("room", roomID), logger.Error(err))
		return
	}
	metrics.RecordInvite(inviteJoined)
	s.logger.Info(ctx, "joined room", logger.String("room", roomID))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"gateway":     s.gateway.Name(),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		if s.deduper != nil {
			stats["seenEvents"] = s.deduper.Size()
		}
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
