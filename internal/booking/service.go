// Package booking holds the (user, session) booking relation, the capacity evaluator
// and the same-day double booking confirmation flow.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymbody/internal/access"
	"gymbody/internal/catalog"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/metrics"
	"gymbody/internal/models"
	"gymbody/internal/schedule"

	"github.com/rs/zerolog"
)

// Holder is whoever ends up holding the booking.
type Holder struct {
	ID   string
	Role models.Role
}

// Result describes a session after a booking action.
type Result struct {
	Session      *models.ClassSession `json:"session"`
	Availability models.Availability  `json:"availability"`
	Waitlisted   bool                 `json:"waitlisted"`
	// Conflicts are the holder's other sessions on the same date.
	Conflicts []*models.ClassSession `json:"conflicts,omitempty"`
}

type Service struct {
	repo    domain.ScheduleRepository
	catalog *catalog.Service
	state   domain.StateRepository
	events  domain.EventPublisher
	syncer  domain.SyncWorker
	logger  *zerolog.Logger
	now     func() time.Time
	holders holderLocks
}

func NewService(
	repo domain.ScheduleRepository,
	catalogSvc *catalog.Service,
	state domain.StateRepository,
	eventBus domain.EventPublisher,
	syncer domain.SyncWorker,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		catalog: catalogSvc,
		state:   state,
		events:  eventBus,
		syncer:  syncer,
		logger:  logger,
		now:     time.Now,
	}
}

// Book books a session for the actor.
func (s *Service) Book(ctx context.Context, actor models.User, sessionID string) (*Result, error) {
	return s.book(ctx, actor, Holder{ID: actor.ID, Role: actor.Role}, sessionID, false)
}

// AssignClient books a session on behalf of a client. The holder goes through the same
// same-day check a self booking would.
func (s *Service) AssignClient(ctx context.Context, actor models.User, holder Holder, sessionID string) (*Result, error) {
	return s.book(ctx, actor, holder, sessionID, false)
}

// Toggle cancels a held session or books an unheld one.
func (s *Service) Toggle(ctx context.Context, actor models.User, sessionID string) (*Result, error) {
	held, err := s.repo.HasBooking(ctx, actor.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if held {
		return s.Cancel(ctx, actor, Holder{ID: actor.ID, Role: actor.Role}, sessionID)
	}
	return s.Book(ctx, actor, sessionID)
}

// Confirm answers a pending double booking prompt. Declining leaves bookings untouched.
func (s *Service) Confirm(ctx context.Context, actor models.User, yes bool) (*Result, error) {
	st, err := s.state.GetState(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load pending confirmation: %w", err)
	}
	if st == nil || st.CurrentStep != models.StateConfirmDoubleBooking {
		return nil, ErrNoPendingConfirmation
	}
	if err := s.state.ClearState(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("clear pending confirmation: %w", err)
	}

	sessionID := st.GetString(models.TempSessionID)
	holder := Holder{ID: st.GetString(models.TempHolderID), Role: models.Role(st.GetString(models.TempHolderRole))}
	if holder.ID == "" {
		holder = Holder{ID: actor.ID, Role: actor.Role}
	}

	if !yes {
		session, _ := s.repo.GetSession(ctx, sessionID)
		metrics.IncConflict(actor.GymID, "declined")
		if session != nil {
			s.publishEvent(events.EventBookingDeclined, session, holder.ID, actor.ID, nil)
		}
		s.logger.Info().Str("user_id", actor.ID).Str("session_id", sessionID).Msg("Double booking declined")
		return nil, nil
	}

	res, err := s.book(ctx, actor, holder, sessionID, true)
	if err == nil {
		metrics.IncConflict(actor.GymID, "confirmed")
	}
	return res, err
}

// Pending returns the parked request of the actor, if any.
func (s *Service) Pending(ctx context.Context, actor models.User) (*models.UserState, error) {
	st, err := s.state.GetState(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if st == nil || st.CurrentStep != models.StateConfirmDoubleBooking {
		return nil, nil
	}
	return st, nil
}

func (s *Service) book(ctx context.Context, actor models.User, holder Holder, sessionID string, confirmed bool) (*Result, error) {
	caps := access.For(actor.Role)
	self := holder.ID == actor.ID
	switch {
	case self && !caps.Can(access.ActionBookSelf):
		return nil, ErrForbidden
	case !self && !caps.Can(access.ActionBookClient):
		return nil, ErrForbidden
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.GymID != actor.GymID {
		return nil, domain.ErrSessionNotFound
	}

	if !access.For(holder.Role).CanBookCategory(session.Category) {
		return nil, ErrCategoryNotAllowed
	}

	if !caps.Staff {
		loc := s.catalog.Location(session.GymID)
		now := s.now()
		start := schedule.StartOf(session, loc, now)
		if !start.After(now.Add(s.catalog.Threshold(session.GymID))) {
			return nil, ErrTooLate
		}
	}

	unlock := s.holders.lock(holder.ID)
	defer unlock()

	held, err := s.repo.HasBooking(ctx, holder.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if held {
		return nil, domain.ErrAlreadyBooked
	}

	if !holder.Role.IsStaff() && !confirmed {
		conflicts, err := s.sameDay(ctx, holder.ID, session)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			if err := s.park(ctx, actor, holder, session, conflicts); err != nil {
				return nil, err
			}
			return &Result{
				Session:      session,
				Availability: Evaluate(session, false),
				Conflicts:    conflicts,
			}, ErrConfirmationRequired
		}
	}

	b := &models.Booking{
		UserID:    holder.ID,
		SessionID: sessionID,
		BookedBy:  actor.ID,
		CreatedAt: s.now(),
	}
	updated, err := s.repo.AddBooking(ctx, b)
	if err != nil {
		return nil, err
	}

	avail := Evaluate(updated, true)
	waitlisted := updated.Booked > updated.Capacity
	action := "book"
	if waitlisted {
		action = "waitlist"
	}
	metrics.IncBooking(updated.GymID, string(updated.Category), action)
	s.publishEvent(events.EventBookingCreated, updated, holder.ID, actor.ID, nil)
	s.enqueueSync(ctx, models.SyncTaskBookingCreated, b, updated)

	s.logger.Info().
		Str("user_id", holder.ID).
		Str("actor_id", actor.ID).
		Str("session_id", sessionID).
		Int("booked", updated.Booked).
		Int("capacity", updated.Capacity).
		Bool("waitlisted", waitlisted).
		Msg("Session booked")

	return &Result{Session: updated, Availability: avail, Waitlisted: waitlisted}, nil
}

// Cancel removes the holder's booking. It never goes through the same-day check.
func (s *Service) Cancel(ctx context.Context, actor models.User, holder Holder, sessionID string) (*Result, error) {
	caps := access.For(actor.Role)
	self := holder.ID == actor.ID
	switch {
	case self && !caps.Can(access.ActionBookSelf):
		return nil, ErrForbidden
	case !self && !caps.Can(access.ActionBookClient):
		return nil, ErrForbidden
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.GymID != actor.GymID {
		return nil, domain.ErrSessionNotFound
	}

	if !caps.Staff {
		gym, err := s.catalog.Gym(session.GymID)
		if err == nil && gym.CancellationWindowHours > 0 {
			now := s.now()
			start := schedule.StartOf(session, s.catalog.Location(session.GymID), now)
			if start.Sub(now) < time.Duration(gym.CancellationWindowHours)*time.Hour {
				return nil, ErrCancellationClosed
			}
		}
	}

	unlock := s.holders.lock(holder.ID)
	defer unlock()

	updated, err := s.repo.RemoveBooking(ctx, holder.ID, sessionID)
	if err != nil {
		return nil, err
	}

	metrics.IncBooking(updated.GymID, string(updated.Category), "cancel")
	s.publishEvent(events.EventBookingCancelled, updated, holder.ID, actor.ID, nil)
	s.enqueueSync(ctx, models.SyncTaskBookingCancelled, &models.Booking{
		UserID:      holder.ID,
		SessionID:   sessionID,
		SessionDate: updated.Date,
		BookedBy:    actor.ID,
		CreatedAt:   s.now(),
	}, updated)

	s.logger.Info().
		Str("user_id", holder.ID).
		Str("actor_id", actor.ID).
		Str("session_id", sessionID).
		Int("booked", updated.Booked).
		Msg("Booking cancelled")

	return &Result{Session: updated, Availability: Evaluate(updated, false)}, nil
}

// sameDay lists the holder's other sessions on the session's date. The session itself
// is never a conflict.
func (s *Service) sameDay(ctx context.Context, holderID string, session *models.ClassSession) ([]*models.ClassSession, error) {
	bookings, err := s.repo.GetUserBookings(ctx, holderID)
	if err != nil {
		return nil, err
	}
	var conflicts []*models.ClassSession
	for _, b := range bookings {
		if b.SessionID == session.ID {
			continue
		}
		other, err := s.repo.GetSession(ctx, b.SessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if other.Date == session.Date {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts, nil
}

func (s *Service) park(ctx context.Context, actor models.User, holder Holder, session *models.ClassSession, conflicts []*models.ClassSession) error {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	st := &models.UserState{
		UserID:      actor.ID,
		CurrentStep: models.StateConfirmDoubleBooking,
		TempData: map[string]interface{}{
			models.TempSessionID:  session.ID,
			models.TempHolderID:   holder.ID,
			models.TempHolderRole: string(holder.Role),
			models.TempActorID:    actor.ID,
			models.TempConflicts:  ids,
		},
	}
	if err := s.state.SetState(ctx, st); err != nil {
		return fmt.Errorf("park booking for confirmation: %w", err)
	}

	metrics.IncConflict(actor.GymID, "prompted")
	s.publishEvent(events.EventBookingConflict, session, holder.ID, actor.ID, ids)
	s.logger.Info().
		Str("user_id", holder.ID).
		Str("session_id", session.ID).
		Strs("conflicts", ids).
		Msg("Same-day booking needs confirmation")
	return nil
}

// Schedule returns the sessions visible to the actor, each evaluated for them.
func (s *Service) Schedule(ctx context.Context, actor models.User, q catalog.Query) ([]models.SessionView, error) {
	q.Caps = access.For(actor.Role)
	sessions, err := s.catalog.Sessions(ctx, actor.GymID, q)
	if err != nil {
		return nil, err
	}
	held, err := s.heldSet(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	canBook := q.Caps.Can(access.ActionBookSelf) || q.Caps.Can(access.ActionBookClient)
	views := make([]models.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, models.SessionView{
			ClassSession: *sess,
			Availability: Evaluate(sess, held[sess.ID]),
			CanBook:      canBook,
		})
	}
	return views, nil
}

// UserSessions lists the sessions a user holds, by date and start time. With
// upcomingOnly set, sessions that already started are left out.
func (s *Service) UserSessions(ctx context.Context, gymID, userID string, upcomingOnly bool) ([]models.SessionView, error) {
	bookings, err := s.repo.GetUserBookings(ctx, userID)
	if err != nil {
		return nil, err
	}

	loc := s.catalog.Location(gymID)
	now := s.now()
	var sessions []*models.ClassSession
	for _, b := range bookings {
		sess, err := s.repo.GetSession(ctx, b.SessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if sess.GymID != gymID {
			continue
		}
		if upcomingOnly && !schedule.StartOf(sess, loc, now).After(now) {
			continue
		}
		sessions = append(sessions, sess)
	}
	catalog.Sort(sessions, loc)

	views := make([]models.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, models.SessionView{ClassSession: *sess, Availability: Evaluate(sess, true)})
	}
	return views, nil
}

// Availability evaluates one session for a viewer.
func (s *Service) Availability(ctx context.Context, userID, sessionID string) (models.Availability, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return models.Availability{}, err
	}
	held := false
	if userID != "" {
		if held, err = s.repo.HasBooking(ctx, userID, sessionID); err != nil {
			return models.Availability{}, err
		}
	}
	return Evaluate(sess, held), nil
}

// Attendance counts the user's booked sessions in the month of now that already started.
func (s *Service) Attendance(ctx context.Context, gymID, userID string) (int, error) {
	bookings, err := s.repo.GetUserBookings(ctx, userID)
	if err != nil {
		return 0, err
	}
	loc := s.catalog.Location(gymID)
	now := s.now().In(loc)
	count := 0
	for _, b := range bookings {
		start, ok := schedule.ParseStart(b.SessionDate, "12:00 AM", loc)
		if !ok {
			continue
		}
		if start.Year() == now.Year() && start.Month() == now.Month() && !start.After(now) {
			count++
		}
	}
	return count, nil
}

func (s *Service) heldSet(ctx context.Context, userID string) (map[string]bool, error) {
	bookings, err := s.repo.GetUserBookings(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		held[b.SessionID] = true
	}
	return held, nil
}

func (s *Service) publishEvent(eventType string, session *models.ClassSession, holderID, actorID string, conflicts []string) {
	if s.events == nil {
		return
	}

	payload := events.BookingEventPayload{
		GymID:        session.GymID,
		UserID:       holderID,
		ActorID:      actorID,
		SessionID:    session.ID,
		SessionTitle: session.Title,
		Instructor:   session.Instructor,
		Date:         session.Date,
		Time:         session.Time,
		Booked:       session.Booked,
		Capacity:     session.Capacity,
		Waitlisted:   session.Booked > session.Capacity,
		Conflicts:    conflicts,
		At:           s.now(),
	}

	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("session_id", session.ID).Msg("publish event error")
	}
}

func (s *Service) enqueueSync(ctx context.Context, taskType string, b *models.Booking, session *models.ClassSession) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.EnqueueBooking(ctx, taskType, b, session); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
