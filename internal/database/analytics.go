package database

import (
	"context"
	"fmt"

	"gymbody/internal/models"
)

// BookingsPerDay counts bookings of a gym's sessions per session date within
// [from, to]. Dates without bookings are absent.
func (db *DB) BookingsPerDay(ctx context.Context, gymID, from, to string) ([]models.DayCount, error) {
	return db.dayCounts(ctx, `SELECT b.session_date, COUNT(*)
        FROM bookings b JOIN sessions s ON s.id = b.session_id
        WHERE s.gym_id = ? AND b.session_date BETWEEN ? AND ?
        GROUP BY b.session_date ORDER BY b.session_date`, gymID, from, to)
}

// VisitsPerDay counts check-ins of a gym's members per UTC calendar day.
func (db *DB) VisitsPerDay(ctx context.Context, gymID, from, to string) ([]models.DayCount, error) {
	return db.dayCounts(ctx, `SELECT date(v.visited_at) AS day, COUNT(*)
        FROM visits v JOIN members m ON m.id = v.member_id
        WHERE m.gym_id = ? AND date(v.visited_at) BETWEEN ? AND ?
        GROUP BY day ORDER BY day`, gymID, from, to)
}

// BookingsByCategory counts bookings per session category within [from, to].
func (db *DB) BookingsByCategory(ctx context.Context, gymID, from, to string) (map[models.Category]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT s.category, COUNT(*)
        FROM bookings b JOIN sessions s ON s.id = b.session_id
        WHERE s.gym_id = ? AND b.session_date BETWEEN ? AND ?
        GROUP BY s.category`, gymID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by category: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Category]int)
	for rows.Next() {
		var (
			cat models.Category
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		out[cat] = n
	}
	return out, rows.Err()
}

func (db *DB) dayCounts(ctx context.Context, query string, args ...interface{}) ([]models.DayCount, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate: %w", err)
	}
	defer rows.Close()

	var out []models.DayCount
	for rows.Next() {
		var d models.DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
