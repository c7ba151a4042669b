package api

import (
	"errors"
	"net/http"

	"gymbody/internal/analytics"
	"gymbody/internal/assistant"
	"gymbody/internal/auth"
	"gymbody/internal/booking"
	"gymbody/internal/catalog"
	"gymbody/internal/domain"
	"gymbody/internal/incidents"
	"gymbody/internal/members"
	"gymbody/internal/notify"
	"gymbody/internal/trainers"
	"gymbody/internal/wellness"

	"google.golang.org/grpc/codes"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},

	{booking.ErrForbidden, http.StatusForbidden},
	{members.ErrForbidden, http.StatusForbidden},
	{booking.ErrCategoryNotAllowed, http.StatusForbidden},
	{members.ErrAccessDenied, http.StatusForbidden},
	{wellness.ErrNutritionDisabled, http.StatusForbidden},
	{incidents.ErrForbidden, http.StatusForbidden},
	{trainers.ErrForbidden, http.StatusForbidden},
	{analytics.ErrForbidden, http.StatusForbidden},

	{domain.ErrSessionNotFound, http.StatusNotFound},
	{domain.ErrMemberNotFound, http.StatusNotFound},
	{catalog.ErrUnknownGym, http.StatusNotFound},
	{domain.ErrIncidentNotFound, http.StatusNotFound},
	{trainers.ErrUnknownTrainer, http.StatusNotFound},

	{booking.ErrConfirmationRequired, http.StatusConflict},
	{booking.ErrNoPendingConfirmation, http.StatusConflict},
	{domain.ErrAlreadyBooked, http.StatusConflict},
	{domain.ErrNotBooked, http.StatusConflict},
	{members.ErrNothingOutstanding, http.StatusConflict},
	{incidents.ErrAlreadyResolved, http.StatusConflict},
	{trainers.ErrSameTrainer, http.StatusConflict},
	{trainers.ErrUnavailable, http.StatusConflict},

	{booking.ErrTooLate, http.StatusUnprocessableEntity},
	{booking.ErrCancellationClosed, http.StatusUnprocessableEntity},
	{notify.ErrNoChat, http.StatusUnprocessableEntity},

	{wellness.ErrUnknownPreference, http.StatusBadRequest},
	{wellness.ErrInvalidValue, http.StatusBadRequest},
	{wellness.ErrInvalidMeal, http.StatusBadRequest},
	{members.ErrInvalidFilter, http.StatusBadRequest},
	{assistant.ErrInvalidMode, http.StatusBadRequest},
	{assistant.ErrEmptyText, http.StatusBadRequest},
	{incidents.ErrInvalidCategory, http.StatusBadRequest},
	{incidents.ErrMissingTitle, http.StatusBadRequest},
	{incidents.ErrMissingText, http.StatusBadRequest},
	{trainers.ErrInvalidStatus, http.StatusBadRequest},
	{analytics.ErrInvalidRange, http.StatusBadRequest},

	{assistant.ErrRateLimited, http.StatusTooManyRequests},
}

// statusFor maps a service error to an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// codeFor maps a service error to a gRPC code.
func codeFor(err error) codes.Code {
	switch statusFor(err) {
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.FailedPrecondition
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}
