package booking

import "errors"

var (
	// ErrConfirmationRequired means the holder already has a session that day. The
	// request is parked until Confirm is called.
	ErrConfirmationRequired  = errors.New("holder already has a booking on this date; confirmation required")
	ErrNoPendingConfirmation = errors.New("no booking is waiting for confirmation")
	ErrCategoryNotAllowed    = errors.New("session category not allowed for this role")
	ErrTooLate               = errors.New("session starts too soon to book")
	ErrCancellationClosed    = errors.New("cancellation window has closed")
	ErrForbidden             = errors.New("action not permitted for this role")
)
