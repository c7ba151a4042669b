package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/metrics"
	"gymbody/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	pendingListKey = "gymbody:sheets:queue"
	deadListKey    = "gymbody:sheets:deadletter"
)

// bookingPayload is persisted in SyncTask.Payload as JSON.
type bookingPayload struct {
	Booking *models.Booking      `json:"booking"`
	Session *models.ClassSession `json:"session"`
}

// SheetsWorker appends booking changes to the bookings sheet. Every task is
// persisted in the sync queue first; redis or an in-process channel only speed up
// delivery, and polling the queue picks up anything they miss.
type SheetsWorker struct {
	queue   domain.SyncQueue
	sheets  domain.SheetsWriter
	redis   *redis.Client
	backoff Backoff
	log     *zerolog.Logger

	inbox         chan models.SyncTask
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
}

func NewSheetsWorker(queue domain.SyncQueue, sheets domain.SheetsWriter, redisClient *redis.Client, backoff Backoff, logger *zerolog.Logger) *SheetsWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsWorker{
		queue:         queue,
		sheets:        sheets,
		redis:         redisClient,
		backoff:       backoff.withDefaults(),
		log:           logger,
		inbox:         make(chan models.SyncTask, 128),
		deadLetterKey: deadListKey,
		pollInterval:  2 * time.Second,
		batchSize:     20,
	}
}

// EnqueueBooking records a booked or cancelled row for the sheet.
func (w *SheetsWorker) EnqueueBooking(ctx context.Context, taskType string, b *models.Booking, s *models.ClassSession) error {
	switch taskType {
	case models.SyncTaskBookingCreated, models.SyncTaskBookingCancelled:
	default:
		return fmt.Errorf("unknown sync task type %q", taskType)
	}
	if b == nil || s == nil {
		return errors.New("sync task needs both booking and session")
	}

	raw, err := json.Marshal(bookingPayload{Booking: b, Session: s})
	if err != nil {
		return fmt.Errorf("encode sync payload: %w", err)
	}
	task := models.SyncTask{
		TaskType:  taskType,
		UserID:    b.UserID,
		SessionID: s.ID,
		Payload:   string(raw),
		Status:    models.SyncStatusPending,
	}
	if err := w.queue.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		err := w.push(ctx, pendingListKey, task)
		if err == nil {
			return nil
		}
		w.log.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, using memory queue")
	}
	select {
	case w.inbox <- task:
	default:
		w.log.Warn().Int64("task_id", task.ID).Msg("Memory queue full, task left to polling")
	}
	return nil
}

// Start runs until ctx is done, draining the inbox, then redis, then the due
// rows of the sync queue.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.log.Info().Dur("poll", w.pollInterval).Int("attempts", w.backoff.Attempts).Msg("Sheets worker started")
	defer w.log.Info().Msg("Sheets worker stopped")

	for ctx.Err() == nil {
		if task, ok := w.fromInbox(); ok {
			w.handle(ctx, &task)
			continue
		}
		if task, ok := w.fromRedis(ctx); ok {
			w.handle(ctx, &task)
			continue
		}

		due, err := w.queue.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.log.Error().Err(err).Msg("Polling sync queue failed")
		}
		if len(due) == 0 {
			w.idle(ctx)
			continue
		}
		for i := range due {
			w.handle(ctx, &due[i])
		}
	}
}

func (w *SheetsWorker) idle(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *SheetsWorker) fromInbox() (models.SyncTask, bool) {
	select {
	case task := <-w.inbox:
		return task, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SheetsWorker) fromRedis(ctx context.Context) (models.SyncTask, bool) {
	var task models.SyncTask
	if w.redis == nil {
		return task, false
	}

	res, err := w.redis.BRPop(ctx, time.Second, pendingListKey).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return task, false
	default:
		w.log.Warn().Err(err).Msg("Redis BRPOP failed")
		return task, false
	}
	// BRPOP answers [key, value]
	if len(res) != 2 {
		return task, false
	}
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.log.Error().Err(err).Msg("Dropping undecodable redis task")
		return task, false
	}
	return task, true
}

func (w *SheetsWorker) handle(ctx context.Context, task *models.SyncTask) {
	var p bookingPayload
	err := json.Unmarshal([]byte(task.Payload), &p)
	if err == nil && (p.Booking == nil || p.Session == nil) {
		err = errors.New("booking payload missing")
	}
	if err != nil {
		w.bury(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.sheets.AppendBookingRow(ctx, BookingRow(task.TaskType, p.Booking, p.Session)); err != nil {
		w.reschedule(ctx, task, err)
		return
	}

	metrics.IncSync(models.SyncStatusCompleted)
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("Could not mark sync task completed")
	}
}

// BookingRow is the sheet row for one booking change.
func BookingRow(taskType string, b *models.Booking, s *models.ClassSession) []interface{} {
	action := "booked"
	if taskType == models.SyncTaskBookingCancelled {
		action = "cancelled"
	}
	actor := b.BookedBy
	if actor == "" {
		actor = b.UserID
	}
	return []interface{}{
		b.CreatedAt.UTC().Format(time.RFC3339),
		action,
		s.GymID,
		s.Date,
		s.Time,
		s.Title,
		s.Instructor,
		string(s.Category),
		b.UserID,
		actor,
		fmt.Sprintf("%d/%d", s.Booked, s.Capacity),
	}
}

func (w *SheetsWorker) reschedule(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.backoff.Attempts {
		w.bury(ctx, task, cause)
		return
	}

	metrics.IncSync(models.SyncStatusRetry)
	at := time.Now().Add(w.backoff.Delay(attempt))
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &at); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("Could not reschedule sync task")
	}
	w.log.Warn().Err(cause).
		Int64("task_id", task.ID).
		Int("attempt", attempt).
		Time("next_retry_at", at).
		Msg("Sheet append failed, will retry")
}

// bury marks the task failed and copies it to the redis dead-letter list.
func (w *SheetsWorker) bury(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSync(models.SyncStatusFailed)
	if err := w.queue.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("Could not mark sync task failed")
	}
	w.log.Error().Err(cause).Int64("task_id", task.ID).Str("session_id", task.SessionID).Msg("Sync task gave up")

	if w.redis == nil {
		return
	}
	if err := w.push(ctx, w.deadLetterKey, *task); err != nil {
		w.log.Error().Err(err).Int64("task_id", task.ID).Msg("Dead letter push failed")
	}
}

func (w *SheetsWorker) push(ctx context.Context, key string, task models.SyncTask) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, raw).Err()
}
