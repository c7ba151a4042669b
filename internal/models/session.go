package models

type Category string

const (
	CategoryOpenGym      Category = "Open Gym"
	CategorySemiPersonal Category = "Semi Personal"
	CategoryCardio       Category = "Cardio"
	CategoryStrength     Category = "Strength"
	CategoryYoga         Category = "Yoga"
	CategoryPilates      Category = "Pilates"
)

// AllCategories lists every session category in display order.
var AllCategories = []Category{
	CategoryOpenGym,
	CategorySemiPersonal,
	CategoryCardio,
	CategoryStrength,
	CategoryYoga,
	CategoryPilates,
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ClassSession is a scheduled time slot. Date is YYYY-MM-DD in the gym's timezone,
// Time is the display start time ("6:00 PM").
type ClassSession struct {
	ID         string   `json:"id"`
	GymID      string   `json:"gym_id"`
	Date       string   `json:"date"`
	Title      string   `json:"title"`
	Instructor string   `json:"instructor"`
	Time       string   `json:"time"`
	Duration   string   `json:"duration"`
	Category   Category `json:"category"`
	Capacity   int      `json:"capacity"`
	Booked     int      `json:"booked"`
}

func (s *ClassSession) IsFull() bool {
	return s.Booked >= s.Capacity
}

// SessionView is a session decorated for one viewer.
type SessionView struct {
	ClassSession
	Availability Availability `json:"availability"`
	CanBook      bool         `json:"can_book"`
}
