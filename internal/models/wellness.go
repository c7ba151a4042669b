package models

import "time"

// MealLog is one logged meal in the nutrition tracker.
type MealLog struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Kcal     int       `json:"kcal"`
	LoggedAt time.Time `json:"logged_at"`
}

// ProgressSnapshot is attendance against the monthly goal.
type ProgressSnapshot struct {
	Attendance  int     `json:"attendance"`
	MonthlyGoal int     `json:"monthly_goal"`
	Percent     float64 `json:"percent"`
}
