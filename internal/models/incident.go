package models

import "time"

type IncidentCategory string

const (
	IncidentEquipment IncidentCategory = "Equipment"
	IncidentMember    IncidentCategory = "Member"
	IncidentInjury    IncidentCategory = "Injury"
	IncidentCleaning  IncidentCategory = "Cleaning"
)

var IncidentCategories = []IncidentCategory{IncidentEquipment, IncidentMember, IncidentInjury, IncidentCleaning}

func (c IncidentCategory) Valid() bool {
	for _, known := range IncidentCategories {
		if c == known {
			return true
		}
	}
	return false
}

type IncidentStatus string

const (
	IncidentOpen     IncidentStatus = "Open"
	IncidentResolved IncidentStatus = "Resolved"
)

// Incident is an entry in the staff audit log. Notes are oldest first; the first
// note is the description given when the entry was logged.
type Incident struct {
	ID        string           `json:"id"`
	GymID     string           `json:"gym_id"`
	Category  IncidentCategory `json:"category"`
	Title     string           `json:"title"`
	StaffID   string           `json:"staff_id"`
	StaffName string           `json:"staff_name"`
	Status    IncidentStatus   `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Notes     []IncidentNote   `json:"notes"`
}

type IncidentNote struct {
	Text      string    `json:"text"`
	StaffID   string    `json:"staff_id"`
	StaffName string    `json:"staff_name"`
	CreatedAt time.Time `json:"created_at"`
}
