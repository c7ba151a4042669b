// Package analytics builds the owner and admin reports from stored bookings,
// check-ins and billing records.
package analytics

import (
	"context"
	"errors"
	"time"

	"gymbody/internal/access"
	"gymbody/internal/domain"
	"gymbody/internal/models"
	"gymbody/internal/schedule"

	"github.com/rs/zerolog"
)

var (
	ErrForbidden    = errors.New("action not permitted for this role")
	ErrInvalidRange = errors.New("invalid report range")
)

// DefaultDays is the report length when no range is given.
const DefaultDays = 7

// MaxDays bounds a single report.
const MaxDays = 92

// Report is the business health summary for a date range, both ends inclusive.
type Report struct {
	GymID              string                  `json:"gym_id"`
	From               string                  `json:"from"`
	To                 string                  `json:"to"`
	BookingsPerDay     []models.DayCount       `json:"bookings_per_day"`
	VisitsPerDay       []models.DayCount       `json:"visits_per_day"`
	BookingsByCategory map[models.Category]int `json:"bookings_by_category"`
	TotalBookings      int                     `json:"total_bookings"`
	TotalVisits        int                     `json:"total_visits"`
	OpenBalance        float64                 `json:"open_balance"`
}

// Locator resolves a gym's timezone.
type Locator interface {
	Location(gymID string) *time.Location
}

type Service struct {
	repo    domain.AnalyticsRepository
	members domain.MemberRepository
	gyms    Locator
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewService(repo domain.AnalyticsRepository, members domain.MemberRepository, gyms Locator, logger *zerolog.Logger) *Service {
	return &Service{repo: repo, members: members, gyms: gyms, logger: logger, now: time.Now}
}

// Range resolves the report bounds. Missing ends default to the DefaultDays ending
// today in the gym's timezone.
func (s *Service) Range(gymID, from, to string) (string, string, error) {
	loc := s.gyms.Location(gymID)
	end := s.now().In(loc)
	if to != "" {
		t, err := time.ParseInLocation(schedule.DateLayout, to, loc)
		if err != nil {
			return "", "", ErrInvalidRange
		}
		end = t
	}
	start := end.AddDate(0, 0, -(DefaultDays - 1))
	if from != "" {
		t, err := time.ParseInLocation(schedule.DateLayout, from, loc)
		if err != nil {
			return "", "", ErrInvalidRange
		}
		start = t
	}

	startDate, endDate := start.Format(schedule.DateLayout), end.Format(schedule.DateLayout)
	if startDate > endDate || end.Sub(start) > MaxDays*24*time.Hour {
		return "", "", ErrInvalidRange
	}
	return startDate, endDate, nil
}

// Report aggregates bookings per session day, check-ins per day and the open balance
// across members.
func (s *Service) Report(ctx context.Context, actor models.User, from, to string) (*Report, error) {
	if !access.For(actor.Role).Can(access.ActionViewAnalytics) {
		return nil, ErrForbidden
	}
	from, to, err := s.Range(actor.GymID, from, to)
	if err != nil {
		return nil, err
	}

	r := &Report{GymID: actor.GymID, From: from, To: to}
	if r.BookingsPerDay, err = s.repo.BookingsPerDay(ctx, actor.GymID, from, to); err != nil {
		return nil, err
	}
	if r.VisitsPerDay, err = s.repo.VisitsPerDay(ctx, actor.GymID, from, to); err != nil {
		return nil, err
	}
	if r.BookingsByCategory, err = s.repo.BookingsByCategory(ctx, actor.GymID, from, to); err != nil {
		return nil, err
	}
	for _, d := range r.BookingsPerDay {
		r.TotalBookings += d.Count
	}
	for _, d := range r.VisitsPerDay {
		r.TotalVisits += d.Count
	}

	if s.members != nil {
		payments, err := s.members.GetPayments(ctx, actor.GymID)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			r.OpenBalance += p.Balance
		}
	}

	s.logger.Debug().Str("gym_id", actor.GymID).Str("from", from).Str("to", to).Int("bookings", r.TotalBookings).Msg("Report built")
	return r, nil
}
