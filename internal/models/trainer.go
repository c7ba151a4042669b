package models

type TrainerStatus string

const (
	TrainerOnTime TrainerStatus = "on-time"
	TrainerLate   TrainerStatus = "late"
	TrainerAbsent TrainerStatus = "absent"
)

func (s TrainerStatus) Valid() bool {
	return s == TrainerOnTime || s == TrainerLate || s == TrainerAbsent
}

// Trainer is an instructor on the schedule with today's attendance status and the
// sessions they lead on the requested day. Trainers without a recorded status are
// on time.
type Trainer struct {
	Name     string          `json:"name"`
	Status   TrainerStatus   `json:"status"`
	Sessions []*ClassSession `json:"sessions"`
}

// DayCount is one row of a per-day aggregate.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
