package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/models"
)

const sessionColumns = `id, gym_id, date, title, instructor, time, duration, category, capacity, booked`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.ClassSession, error) {
	var s models.ClassSession
	err := row.Scan(&s.ID, &s.GymID, &s.Date, &s.Title, &s.Instructor, &s.Time, &s.Duration, &s.Category, &s.Capacity, &s.Booked)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetSessions(ctx context.Context, gymID string) ([]*models.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []interface{}
	if gymID != "" {
		query += ` WHERE gym_id = ?`
		args = append(args, gymID)
	}
	query += ` ORDER BY date, CAST(id AS INTEGER)`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (db *DB) GetSession(ctx context.Context, id string) (*models.ClassSession, error) {
	return getSession(ctx, db.DB, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getSession(ctx context.Context, q queryRower, id string) (*models.ClassSession, error) {
	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

// AddSessions inserts new sessions and overwrites the descriptive fields of existing
// ones. The booked counter of an existing session is left alone.
func (db *DB) AddSessions(ctx context.Context, sessions []*models.ClassSession) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            gym_id = excluded.gym_id,
            date = excluded.date,
            title = excluded.title,
            instructor = excluded.instructor,
            time = excluded.time,
            duration = excluded.duration,
            category = excluded.category,
            capacity = excluded.capacity`)
	if err != nil {
		return fmt.Errorf("failed to prepare session insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sessions {
		booked := s.Booked
		if booked < 0 {
			booked = 0
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.GymID, s.Date, s.Title, s.Instructor, s.Time, s.Duration, s.Category, s.Capacity, booked); err != nil {
			return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteSessionsBefore removes a gym's sessions dated before date together with their bookings.
func (db *DB) DeleteSessionsBefore(ctx context.Context, gymID, date string) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE gym_id = ? AND date < ?`, gymID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return int(n), nil
}

func (db *DB) LastSessionID(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(CAST(id AS INTEGER)) FROM sessions`).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to get last session id: %w", err)
	}
	return last.Int64, nil
}

// AddBooking records the relation and increments the session counter in one transaction.
func (db *DB) AddBooking(ctx context.Context, b *models.Booking) (*models.ClassSession, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	s, err := getSession(ctx, tx, b.SessionID)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.SessionDate = s.Date

	res, err := tx.ExecContext(ctx, `INSERT INTO bookings (user_id, session_id, session_date, booked_by, created_at)
        VALUES (?, ?, ?, ?, ?) ON CONFLICT(user_id, session_id) DO NOTHING`,
		b.UserID, b.SessionID, b.SessionDate, b.BookedBy, b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrAlreadyBooked
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET booked = booked + 1 WHERE id = ?`, b.SessionID); err != nil {
		return nil, fmt.Errorf("failed to increment booked: %w", err)
	}
	s.Booked++

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}
	return s, nil
}

// RemoveBooking deletes the relation and decrements the counter, never below zero.
func (db *DB) RemoveBooking(ctx context.Context, userID, sessionID string) (*models.ClassSession, error) {
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

	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotBooked
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET booked = MAX(booked - 1, 0) WHERE id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to decrement booked: %w", err)
	}
	s, err := getSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return s, nil
}

func (db *DB) HasBooking(ctx context.Context, userID, sessionID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = ? AND session_id = ?`, userID, sessionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check booking: %w", err)
	}
	return n > 0, nil
}

func (db *DB) GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `WHERE user_id = ?`, userID)
}

func (db *DB) GetSessionBookings(ctx context.Context, sessionID string) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `WHERE session_id = ?`, sessionID)
}

func (db *DB) queryBookings(ctx context.Context, where string, arg string) ([]*models.Booking, error) {
	query := `SELECT user_id, session_id, session_date, booked_by, created_at FROM bookings ` +
		where + ` ORDER BY created_at, session_id`
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.UserID, &b.SessionID, &b.SessionDate, &b.BookedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	return bookings, rows.Err()
}
