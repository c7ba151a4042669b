// Package trainers tracks instructor attendance for the day and hands sessions of a
// missing instructor to a substitute.
package trainers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gymbody/internal/access"
	"gymbody/internal/catalog"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/models"
	"gymbody/internal/schedule"

	"github.com/rs/zerolog"
)

var (
	ErrForbidden      = errors.New("action not permitted for this role")
	ErrUnknownTrainer = errors.New("trainer not on the schedule")
	ErrInvalidStatus  = errors.New("unknown trainer status")
	ErrSameTrainer    = errors.New("substitute already leads the session")
	ErrUnavailable    = errors.New("substitute is not on time today")
)

// Locator resolves a gym's timezone.
type Locator interface {
	Location(gymID string) *time.Location
}

// Substitution is the outcome of AssignSubstitute.
type Substitution struct {
	Session  *models.ClassSession `json:"session"`
	Replaced string               `json:"replaced"`
	Holders  int                  `json:"holders"`
	Notified int                  `json:"notified"`
}

type Service struct {
	sessions domain.ScheduleRepository
	repo     domain.TrainerRepository
	members  domain.MemberRepository
	notifier domain.Notifier
	events   domain.EventPublisher
	gyms     Locator
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewService(
	sessions domain.ScheduleRepository,
	repo domain.TrainerRepository,
	members domain.MemberRepository,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	gyms Locator,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		repo:     repo,
		members:  members,
		notifier: notifier,
		events:   eventBus,
		gyms:     gyms,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) today(gymID string) string {
	return s.now().In(s.gyms.Location(gymID)).Format(schedule.DateLayout)
}

// Roster lists the instructors leading sessions on date (today when empty), sorted by
// name, each with their sessions in start order.
func (s *Service) Roster(ctx context.Context, actor models.User, date string) ([]models.Trainer, error) {
	if !access.For(actor.Role).Staff {
		return nil, ErrForbidden
	}
	if date == "" {
		date = s.today(actor.GymID)
	}

	all, err := s.sessions.GetSessions(ctx, actor.GymID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.repo.GetTrainerStatuses(ctx, actor.GymID, date)
	if err != nil {
		return nil, err
	}

	var day []*models.ClassSession
	for _, sess := range all {
		if sess.Date == date {
			day = append(day, sess)
		}
	}
	loc, now := s.gyms.Location(actor.GymID), s.now()
	sort.SliceStable(day, func(i, j int) bool {
		return schedule.StartOf(day[i], loc, now).Before(schedule.StartOf(day[j], loc, now))
	})

	byName := make(map[string]*models.Trainer)
	for _, name := range catalog.Trainers(day) {
		status, ok := statuses[name]
		if !ok {
			status = models.TrainerOnTime
		}
		byName[name] = &models.Trainer{Name: name, Status: status}
	}
	for _, sess := range day {
		if t, ok := byName[sess.Instructor]; ok {
			t.Sessions = append(t.Sessions, sess)
		}
	}

	out := make([]models.Trainer, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Service) onSchedule(ctx context.Context, gymID, name string) (bool, error) {
	all, err := s.sessions.GetSessions(ctx, gymID)
	if err != nil {
		return false, err
	}
	for _, sess := range all {
		if strings.EqualFold(sess.Instructor, name) {
			return true, nil
		}
	}
	return false, nil
}

// SetStatus records whether a trainer is on time, late or absent on date (today when
// empty).
func (s *Service) SetStatus(ctx context.Context, actor models.User, date, name string, status models.TrainerStatus) error {
	if !access.For(actor.Role).Can(access.ActionManageTrainers) {
		return ErrForbidden
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}
	name = strings.TrimSpace(name)
	known, err := s.onSchedule(ctx, actor.GymID, name)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownTrainer, name)
	}
	if date == "" {
		date = s.today(actor.GymID)
	}

	if err := s.repo.SetTrainerStatus(ctx, actor.GymID, date, name, status, actor.ID); err != nil {
		return err
	}
	s.logger.Info().Str("trainer", name).Str("date", date).Str("status", string(status)).Str("actor_id", actor.ID).Msg("Trainer status updated")
	s.publish(events.EventTrainerStatus, events.TrainerEventPayload{
		GymID:   actor.GymID,
		Trainer: name,
		Status:  string(status),
		Date:    date,
		ActorID: actor.ID,
		At:      s.now(),
	})
	return nil
}

// AssignSubstitute hands a session to another instructor who is on time that day and
// messages every holder with a linked chat.
func (s *Service) AssignSubstitute(ctx context.Context, actor models.User, sessionID, substitute string) (*Substitution, error) {
	if !access.For(actor.Role).Can(access.ActionManageTrainers) {
		return nil, ErrForbidden
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.GymID != actor.GymID {
		return nil, domain.ErrSessionNotFound
	}

	substitute = strings.TrimSpace(substitute)
	if substitute == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownTrainer)
	}
	if strings.EqualFold(substitute, session.Instructor) {
		return nil, ErrSameTrainer
	}
	statuses, err := s.repo.GetTrainerStatuses(ctx, actor.GymID, session.Date)
	if err != nil {
		return nil, err
	}
	if st, ok := statuses[substitute]; ok && st != models.TrainerOnTime {
		return nil, fmt.Errorf("%w: %s is %s", ErrUnavailable, substitute, st)
	}

	replaced := session.Instructor
	updated, err := s.repo.SetInstructor(ctx, sessionID, substitute)
	if err != nil {
		return nil, err
	}

	bookings, err := s.sessions.GetSessionBookings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res := &Substitution{Session: updated, Replaced: replaced, Holders: len(bookings)}
	holders := make([]string, 0, len(bookings))
	text := fmt.Sprintf("%s on %s at %s will be led by %s instead of %s.", updated.Title, updated.Date, updated.Time, substitute, replaced)
	for _, b := range bookings {
		holders = append(holders, b.UserID)
		if s.tell(ctx, b.UserID, text) {
			res.Notified++
		}
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("replaced", replaced).
		Str("substitute", substitute).
		Int("holders", res.Holders).
		Int("notified", res.Notified).
		Msg("Substitute assigned")
	s.publish(events.EventSubstitute, events.TrainerEventPayload{
		GymID:        updated.GymID,
		Trainer:      replaced,
		Substitute:   substitute,
		SessionID:    updated.ID,
		SessionTitle: updated.Title,
		Date:         updated.Date,
		Time:         updated.Time,
		Holders:      holders,
		ActorID:      actor.ID,
		At:           s.now(),
	})
	return res, nil
}

// tell messages a booking holder when they have a member profile with a chat.
func (s *Service) tell(ctx context.Context, userID, text string) bool {
	if s.members == nil || s.notifier == nil {
		return false
	}
	m, err := s.members.GetMember(ctx, userID)
	if err != nil || m.ChatID == 0 {
		return false
	}
	if err := s.notifier.NotifyChat(ctx, m.ChatID, text); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Substitute notice not sent")
		return false
	}
	return true
}

func (s *Service) publish(eventType string, payload events.TrainerEventPayload) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
