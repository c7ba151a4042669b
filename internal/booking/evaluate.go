package booking

import "gymbody/internal/models"

// Evaluate computes the capacity picture of a session for one viewer. The stored
// counter already includes the viewer when held is true, so the viewer is counted
// exactly once.
func Evaluate(s *models.ClassSession, held bool) models.Availability {
	booked := s.Booked
	if booked < 0 {
		booked = 0
	}

	displayed := booked
	if held {
		others := booked - 1
		if others < 0 {
			others = 0
		}
		displayed = others + 1
	}

	a := models.Availability{
		SessionID: s.ID,
		Date:      s.Date,
		Booked:    displayed,
		Capacity:  s.Capacity,
		Held:      held,
		Full:      displayed >= s.Capacity,
	}
	if a.Available = s.Capacity - displayed; a.Available < 0 {
		a.Available = 0
	}

	switch {
	case held:
		a.Label = models.LabelBooked
	case a.Full:
		a.Label = models.LabelWaitlist
	default:
		a.Label = models.LabelBookNow
	}
	return a
}
