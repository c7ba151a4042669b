package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gymbody/internal/database"
	"gymbody/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func sampleBooking() (*models.Booking, *models.ClassSession) {
	b := &models.Booking{
		UserID:      "u_og_1",
		SessionID:   "7",
		SessionDate: "2024-06-10",
		BookedBy:    "u_admin_1",
		CreatedAt:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	s := &models.ClassSession{
		ID: "7", GymID: "gymbody", Date: "2024-06-10", Title: "Open Gym Access", Instructor: "Staff",
		Time: "9:00 AM", Duration: "60m", Category: models.CategoryOpenGym, Capacity: 2, Booked: 1,
	}
	return b, s
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, Backoff{}, nil)

	ctx := context.Background()
	b, s := sampleBooking()
	if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCreated, b, s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.fromInbox()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.handle(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	rows := sheets.appended()
	if len(rows) != 1 {
		t.Fatalf("expected 1 appended row, got %d", len(rows))
	}
	if rows[0][1] != "booked" || rows[0][8] != "u_og_1" || rows[0][9] != "u_admin_1" || rows[0][10] != "1/2" {
		t.Fatalf("unexpected row: %v", rows[0])
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, Backoff{Attempts: 3, Base: time.Second}, nil)

	ctx := context.Background()
	b, s := sampleBooking()
	if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCancelled, b, s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.fromInbox()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.handle(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, nil, Backoff{Attempts: 1}, nil)

	ctx := context.Background()
	b, s := sampleBooking()
	if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCreated, b, s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := worker.fromInbox()
	worker.handle(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, Backoff{}, nil)

	ctx := context.Background()
	task := models.SyncTask{TaskType: models.SyncTaskBookingCreated, SessionID: "7", Payload: "invalid json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.handle(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestSheetsWorker_EnqueueBooking(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, Backoff{}, nil)

	ctx := context.Background()
	b, s := sampleBooking()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCreated, b, s); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueBooking(ctx, "", b, s); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("MissingSession", func(t *testing.T) {
		if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCreated, b, nil); err == nil {
			t.Fatalf("expected error for missing session")
		}
	})
}

func TestSheetsWorker_RedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("down")}
	worker := NewSheetsWorker(db, sheets, client, Backoff{Attempts: 1}, nil)

	ctx := context.Background()
	b, s := sampleBooking()
	if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCreated, b, s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := worker.fromInbox(); ok {
		t.Fatalf("task should go to redis, not the memory queue")
	}

	task, ok := worker.fromRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis")
	}
	if task.SessionID != "7" {
		t.Fatalf("unexpected task: %+v", task)
	}

	worker.handle(ctx, &task)

	dead, err := client.LRange(ctx, worker.deadLetterKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	var deadTask models.SyncTask
	if err := json.Unmarshal([]byte(dead[0]), &deadTask); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if deadTask.ID != task.ID {
		t.Fatalf("dead letter id %d, want %d", deadTask.ID, task.ID)
	}
}

func TestSheetsWorker_StartDrainsPending(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, Backoff{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, s := sampleBooking()
	if err := worker.EnqueueBooking(ctx, models.SyncTaskBookingCreated, b, s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// A task persisted without being queued is picked up by polling.
	_, s2 := sampleBooking()
	s2.ID = "8"
	payload, _ := json.Marshal(bookingPayload{Booking: b, Session: s2})
	if err := db.CreateSyncTask(ctx, &models.SyncTask{TaskType: models.SyncTaskBookingCreated, SessionID: "8", Payload: string(payload)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(sheets.appended()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if n := len(sheets.appended()); n < 2 {
		t.Fatalf("expected both tasks appended, got %d", n)
	}
	pending, err := db.GetPendingSyncTasks(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending tasks, got %d", len(pending))
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Ceiling: 5 * time.Second}
	d1 := b.Delay(1)
	d2 := b.Delay(2)
	d3 := b.Delay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
	if d := (Backoff{}).Delay(0); d != time.Second {
		t.Fatalf("zero backoff expected 1s, got %s", d)
	}
}

// Helpers

type fakeSheets struct {
	mu   sync.Mutex
	err  error
	rows [][]interface{}
}

func (f *fakeSheets) AppendBookingRow(ctx context.Context, row []interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeSheets) appended() [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]interface{}(nil), f.rows...)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
