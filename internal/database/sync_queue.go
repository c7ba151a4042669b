package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gymbody/internal/models"
)

const selectSyncTask = `SELECT id, task_type, user_id, session_id, payload, status, retry_count,
       last_error, created_at, processed_at, next_retry_at
  FROM sync_queue`

// CreateSyncTask queues a sheet append. The stored row starts pending unless the
// caller set a status.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	created := time.Now().UTC()

	res, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, user_id, session_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.UserID, task.SessionID, task.Payload, task.Status,
		task.RetryCount, task.LastError, created, inUTC(task.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("queue %s for session %s: %w", task.TaskType, task.SessionID, err)
	}
	if task.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sync task id: %w", err)
	}
	task.CreatedAt = created
	return nil
}

// GetPendingSyncTasks returns up to limit due tasks, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.listSyncTasks(ctx, selectSyncTask+`
 WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
 ORDER BY created_at, id
 LIMIT ?`, time.Now().UTC(), limit)
}

// FailedSyncTasks returns the most recent tasks that exhausted their retries.
func (db *DB) FailedSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.listSyncTasks(ctx, selectSyncTask+`
 WHERE status = 'failed'
 ORDER BY created_at DESC, id DESC
 LIMIT ?`, limit)
}

// CountSyncTasks returns the number of queued tasks per status.
func (db *DB) CountSyncTasks(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sync tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan sync count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (db *DB) listSyncTasks(ctx context.Context, query string, args ...any) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync tasks: %w", err)
	}
	defer rows.Close()

	var out []models.SyncTask
	for rows.Next() {
		task, err := scanSyncTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanSyncTask(rows *sql.Rows) (models.SyncTask, error) {
	var t models.SyncTask
	if err := rows.Scan(&t.ID, &t.TaskType, &t.UserID, &t.SessionID, &t.Payload, &t.Status,
		&t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
		return t, fmt.Errorf("scan sync task: %w", err)
	}
	return t, nil
}

// UpdateSyncTaskStatus moves a task to status. Retry bumps the attempt counter;
// completed and failed stamp processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	set := `status = ?, last_error = ?, next_retry_at = ?`
	args := []any{status, errMsg, inUTC(nextRetryAt)}

	switch status {
	case models.SyncStatusRetry:
		set += `, retry_count = retry_count + 1`
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		set += `, processed_at = ?`
		args = append(args, time.Now().UTC())
	}
	args = append(args, id)

	if _, err := db.ExecContext(ctx, `UPDATE sync_queue SET `+set+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("mark sync task %d %s: %w", id, status, err)
	}
	return nil
}

// sqlite compares datetimes as text, so stored times are normalised to UTC.
func inUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
