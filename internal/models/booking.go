package models

import "time"

// Booking is the (holder, session) relation. BookedBy differs from UserID when staff
// book on behalf of a client.
type Booking struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	SessionDate string    `json:"session_date"`
	BookedBy    string    `json:"booked_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Availability is the capacity picture of one session as seen by one viewer.
type Availability struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
	Booked    int    `json:"booked"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Held      bool   `json:"held"`
	Full      bool   `json:"full"`
	Label     string `json:"label"`
}
