package domain

import "errors"

// Storage errors shared by the sqlite and in-memory implementations.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAlreadyBooked    = errors.New("session already booked by user")
	ErrNotBooked        = errors.New("session not booked by user")
	ErrMemberNotFound   = errors.New("member not found")
	ErrIncidentNotFound = errors.New("incident not found")
)
