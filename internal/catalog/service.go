package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/metrics"
	"gymbody/internal/models"
	"gymbody/internal/schedule"

	"github.com/rs/zerolog"
)

// Service keeps each gym's stored sessions aligned with its current window and answers
// catalog queries.
type Service struct {
	repo       domain.ScheduleRepository
	gyms       map[string]models.GymConfig
	generators map[string]*schedule.Generator
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewService(repo domain.ScheduleRepository, gyms []models.GymConfig, safetyLimit int, rnd *rand.Rand, logger *zerolog.Logger) *Service {
	s := &Service{
		repo:       repo,
		gyms:       make(map[string]models.GymConfig, len(gyms)),
		generators: make(map[string]*schedule.Generator, len(gyms)),
		logger:     logger,
		now:        time.Now,
	}
	for _, g := range gyms {
		s.gyms[g.ID] = g
		s.generators[g.ID] = schedule.NewGenerator(g, schedule.OptionsFor(g, safetyLimit), rnd)
	}
	return s
}

var ErrUnknownGym = errors.New("unknown gym")

func (s *Service) Gym(id string) (models.GymConfig, error) {
	g, ok := s.gyms[id]
	if !ok {
		return models.GymConfig{}, fmt.Errorf("%w: %s", ErrUnknownGym, id)
	}
	return g, nil
}

func (s *Service) Location(gymID string) *time.Location {
	if gen, ok := s.generators[gymID]; ok {
		return gen.Options().Location
	}
	return time.UTC
}

// Threshold is the client lead time for the gym.
func (s *Service) Threshold(gymID string) time.Duration {
	minutes := s.gyms[gymID].VisibilityThresholdMinutes
	if minutes <= 0 {
		minutes = models.DefaultVisibilityThresholdMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Window lists the open days for the gym as of now.
func (s *Service) Window(gymID string, now time.Time) ([]schedule.Day, error) {
	gen, ok := s.generators[gymID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGym, gymID)
	}
	return schedule.Window(now, gen.Options()), nil
}

// Refresh drops days that left the window and generates sessions for days that
// entered it. Days already stored keep their sessions and bookings.
func (s *Service) Refresh(ctx context.Context) error {
	now := s.now()
	for id := range s.gyms {
		if err := s.refreshGym(ctx, id, now); err != nil {
			return fmt.Errorf("refresh %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) refreshGym(ctx context.Context, gymID string, now time.Time) error {
	gen := s.generators[gymID]
	days := schedule.Window(now, gen.Options())
	if len(days) == 0 {
		s.logger.Warn().Str("gym", gymID).Msg("Schedule window is empty")
		return nil
	}

	removed, err := s.repo.DeleteSessionsBefore(ctx, gymID, days[0].Date)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetSessions(ctx, gymID)
	if err != nil {
		return err
	}
	stored := make(map[string]bool)
	for _, sess := range existing {
		stored[sess.Date] = true
	}

	var missing []schedule.Day
	for _, d := range days {
		if !stored[d.Date] {
			missing = append(missing, d)
		}
	}

	added := 0
	if len(missing) > 0 {
		last, err := s.repo.LastSessionID(ctx)
		if err != nil {
			return err
		}
		sessions := gen.GenerateDays(missing, last+1)
		if err := s.repo.AddSessions(ctx, sessions); err != nil {
			return err
		}
		added = len(sessions)
	}

	metrics.SetSessionsInWindow(gymID, len(existing)+added)
	s.logger.Info().
		Str("gym", gymID).
		Str("from", days[0].Date).
		Int("removed", removed).
		Int("added", added).
		Msg("Schedule window refreshed")
	return nil
}

// Run refreshes on every tick until ctx is done.
func (s *Service) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Schedule refresh failed")
			}
		}
	}
}

// Sessions returns the stored sessions of a gym visible under q.
func (s *Service) Sessions(ctx context.Context, gymID string, q Query) ([]*models.ClassSession, error) {
	all, err := s.repo.GetSessions(ctx, gymID)
	if err != nil {
		return nil, err
	}
	return Filter(all, s.Query(gymID, q)), nil
}

// Query fills in the gym rules and the clock where q leaves them unset.
func (s *Service) Query(gymID string, q Query) Query {
	if q.Location == nil {
		q.Location = s.Location(gymID)
	}
	if q.Threshold == 0 {
		q.Threshold = s.Threshold(gymID)
	}
	if q.Now.IsZero() {
		q.Now = s.now()
	}
	return q
}
