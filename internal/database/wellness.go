package database

import (
	"context"
	"fmt"
	"time"

	"gymbody/internal/models"

	"github.com/google/uuid"
)

func (db *DB) GetPreferences(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}

func (db *DB) SetPreference(ctx context.Context, userID, key, value string) error {
	query := `INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, userID, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

func (db *DB) AddMeal(ctx context.Context, meal *models.MealLog) error {
	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	if meal.LoggedAt.IsZero() {
		meal.LoggedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO meal_logs (id, user_id, name, kcal, logged_at) VALUES (?, ?, ?, ?, ?)`,
		meal.ID, meal.UserID, meal.Name, meal.Kcal, meal.LoggedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add meal: %w", err)
	}
	return nil
}

// GetMeals returns meals logged in [from, to), oldest first.
func (db *DB) GetMeals(ctx context.Context, userID string, from, to time.Time) ([]*models.MealLog, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, name, kcal, logged_at FROM meal_logs
        WHERE user_id = ? AND logged_at >= ? AND logged_at < ?
        ORDER BY logged_at`,
		userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get meals: %w", err)
	}
	defer rows.Close()

	var meals []*models.MealLog
	for rows.Next() {
		var m models.MealLog
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Kcal, &m.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, &m)
	}
	return meals, rows.Err()
}
