package notify

import (
	"context"
	"errors"
	"time"

	"gymbody/internal/domain"

	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("notification queue is full")

type delivery struct {
	staff  bool
	chatID int64
	text   string
}

// Dispatcher queues notifications and hands them to the wrapped notifier from its own
// goroutine, so a slow messenger never holds up the caller. Each delivery gets its own
// deadline.
type Dispatcher struct {
	next    domain.Notifier
	queue   chan delivery
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewDispatcher(next domain.Notifier, size int, timeout time.Duration, logger *zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		next:    next,
		queue:   make(chan delivery, size),
		timeout: timeout,
		logger:  logger,
	}
}

func (d *Dispatcher) NotifyStaff(ctx context.Context, text string) error {
	return d.enqueue(delivery{staff: true, text: text})
}

func (d *Dispatcher) NotifyChat(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return ErrNoChat
	}
	return d.enqueue(delivery{chatID: chatID, text: text})
}

func (d *Dispatcher) enqueue(job delivery) error {
	select {
	case d.queue <- job:
		return nil
	default:
		d.logger.Warn().Int64("chat_id", job.chatID).Bool("staff", job.staff).Msg("Notification queue full, message dropped")
		return ErrQueueFull
	}
}

// Pending reports how many messages are waiting for delivery.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run delivers queued messages until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info().Int("queue_size", cap(d.queue)).Dur("timeout", d.timeout).Msg("Notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Int("pending", len(d.queue)).Msg("Notification dispatcher stopped")
			return
		case job := <-d.queue:
			d.deliver(ctx, job)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job delivery) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if job.staff {
			done <- d.next.NotifyStaff(ctx, job.text)
			return
		}
		done <- d.next.NotifyChat(ctx, job.chatID, job.text)
	}()

	select {
	case err := <-done:
		if err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", job.chatID).Bool("staff", job.staff).Msg("Notification delivery failed")
		}
	case <-ctx.Done():
		d.logger.Warn().Err(ctx.Err()).Int64("chat_id", job.chatID).Bool("staff", job.staff).Msg("Notification delivery timed out")
	}
}
