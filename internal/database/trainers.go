package database

import (
	"context"
	"fmt"
	"time"

	"gymbody/internal/models"
)

// GetTrainerStatuses returns the statuses recorded for a gym on date, keyed by
// trainer name.
func (db *DB) GetTrainerStatuses(ctx context.Context, gymID, date string) (map[string]models.TrainerStatus, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, status FROM trainer_status WHERE gym_id = ? AND date = ?`, gymID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get trainer statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.TrainerStatus)
	for rows.Next() {
		var (
			name   string
			status models.TrainerStatus
		)
		if err := rows.Scan(&name, &status); err != nil {
			return nil, fmt.Errorf("failed to scan trainer status: %w", err)
		}
		out[name] = status
	}
	return out, rows.Err()
}

func (db *DB) SetTrainerStatus(ctx context.Context, gymID, date, name string, status models.TrainerStatus, actorID string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO trainer_status (gym_id, date, name, status, updated_by, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(gym_id, date, name) DO UPDATE SET
            status = excluded.status,
            updated_by = excluded.updated_by,
            updated_at = excluded.updated_at`,
		gymID, date, name, status, actorID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set status of %s: %w", name, err)
	}
	return nil
}

// SetInstructor replaces the instructor of one session and returns the updated row.
func (db *DB) SetInstructor(ctx context.Context, sessionID, name string) (*models.ClassSession, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := getSession(ctx, tx, sessionID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET instructor = ? WHERE id = ?`, name, sessionID); err != nil {
		return nil, fmt.Errorf("failed to set instructor of %s: %w", sessionID, err)
	}
	s, err := getSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit instructor change: %w", err)
	}
	return s, nil
}
