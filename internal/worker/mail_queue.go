package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/notify"
)

// ErrMailQueueFull is returned when the outbox is at capacity; the message is dropped.
var ErrMailQueueFull = errors.New("mail queue full")

// ErrMailQueueClosed is returned for sends after shutdown began.
var ErrMailQueueClosed = errors.New("mail queue closed")

// MailQueue is a notify.Mailer that hands messages to a single sender goroutine, so event
// handlers running inside a request never wait on SMTP.
type MailQueue struct {
	next   notify.Mailer
	jobs   chan notify.Message
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMailQueue starts the sender. size bounds the outbox.
func NewMailQueue(next notify.Mailer, size int, logger *zap.Logger) *MailQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 64
	}
	q := &MailQueue{
		next:   next,
		jobs:   make(chan notify.Message, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Send enqueues msg without blocking.
func (q *MailQueue) Send(msg notify.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrMailQueueClosed
	}
	select {
	case q.jobs <- msg:
		return nil
	default:
		q.logger.Warn("mail queue full; dropping message", zap.String("subject", msg.Subject))
		return ErrMailQueueFull
	}
}

func (q *MailQueue) run() {
	defer close(q.done)
	for msg := range q.jobs {
		if err := q.next.Send(msg); err != nil {
			q.logger.Warn("mail send failed", zap.Strings("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		}
	}
}

// Close stops accepting messages and waits for the outbox to drain or ctx to end.
func (q *MailQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.logger.Warn("mail queue not drained", zap.Int("pending", len(q.jobs)))
		return ctx.Err()
	}
}
