// Package incidents is the staff audit log: equipment faults, member disputes,
// injuries and cleaning issues, each with a thread of follow-up notes.
package incidents

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gymbody/internal/access"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrForbidden       = errors.New("action not permitted for this role")
	ErrInvalidCategory = errors.New("unknown incident category")
	ErrMissingTitle    = errors.New("incident title is required")
	ErrMissingText     = errors.New("incident text is required")
	ErrAlreadyResolved = errors.New("incident is already resolved")
)

// Entry is what staff fill in when logging an incident.
type Entry struct {
	Category models.IncidentCategory
	Title    string
	Text     string
}

type Service struct {
	repo   domain.IncidentRepository
	events domain.EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(repo domain.IncidentRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventBus,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func allowed(actor models.User) bool {
	return access.For(actor.Role).Can(access.ActionManageIncidents)
}

// List returns the gym's log newest first. query matches the title or any note,
// case-insensitively; an empty category matches all.
func (s *Service) List(ctx context.Context, actor models.User, query string, category models.IncidentCategory) ([]*models.Incident, error) {
	if !allowed(actor) {
		return nil, ErrForbidden
	}
	if category != "" && !category.Valid() {
		return nil, ErrInvalidCategory
	}

	all, err := s.repo.GetIncidents(ctx, actor.GymID)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]*models.Incident, 0, len(all))
	for _, inc := range all {
		if category != "" && inc.Category != category {
			continue
		}
		if !mentions(inc, q) {
			continue
		}
		out = append(out, inc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func mentions(inc *models.Incident, q string) bool {
	if q == "" || strings.Contains(strings.ToLower(inc.Title), q) {
		return true
	}
	for _, n := range inc.Notes {
		if strings.Contains(strings.ToLower(n.Text), q) {
			return true
		}
	}
	return false
}

func (s *Service) Get(ctx context.Context, actor models.User, id string) (*models.Incident, error) {
	if !allowed(actor) {
		return nil, ErrForbidden
	}
	inc, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.GymID != actor.GymID {
		return nil, domain.ErrIncidentNotFound
	}
	return inc, nil
}

// Log opens a new incident. The entry text becomes the first note.
func (s *Service) Log(ctx context.Context, actor models.User, e Entry) (*models.Incident, error) {
	if !allowed(actor) {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(e.Title)
	text := strings.TrimSpace(e.Text)
	switch {
	case !e.Category.Valid():
		return nil, ErrInvalidCategory
	case title == "":
		return nil, ErrMissingTitle
	case text == "":
		return nil, ErrMissingText
	}

	now := s.now()
	inc := &models.Incident{
		ID:        s.newID(),
		GymID:     actor.GymID,
		Category:  e.Category,
		Title:     title,
		StaffID:   actor.ID,
		StaffName: staffName(actor),
		Status:    models.IncidentOpen,
		CreatedAt: now,
		Notes: []models.IncidentNote{{
			Text:      text,
			StaffID:   actor.ID,
			StaffName: staffName(actor),
			CreatedAt: now,
		}},
	}
	if err := s.repo.CreateIncident(ctx, inc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("incident_id", inc.ID).
		Str("category", string(inc.Category)).
		Str("staff_id", actor.ID).
		Msg("Incident logged")

	if s.events != nil {
		payload := events.IncidentEventPayload{
			GymID:      inc.GymID,
			IncidentID: inc.ID,
			Category:   string(inc.Category),
			Title:      inc.Title,
			StaffName:  inc.StaffName,
			At:         now,
		}
		if err := s.events.PublishJSON(events.EventIncidentLogged, payload); err != nil {
			s.logger.Error().Err(err).Str("incident_id", inc.ID).Msg("publish event error")
		}
	}
	return inc, nil
}

// AddNote appends a follow-up to an incident.
func (s *Service) AddNote(ctx context.Context, actor models.User, id, text string) (*models.Incident, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrMissingText
	}

	note := models.IncidentNote{Text: text, StaffID: actor.ID, StaffName: staffName(actor), CreatedAt: s.now()}
	if err := s.repo.AddIncidentNote(ctx, id, note); err != nil {
		return nil, err
	}
	return s.repo.GetIncident(ctx, id)
}

// Resolve closes an open incident, optionally with a closing note.
func (s *Service) Resolve(ctx context.Context, actor models.User, id, text string) (*models.Incident, error) {
	inc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if inc.Status == models.IncidentResolved {
		return nil, ErrAlreadyResolved
	}
	if text = strings.TrimSpace(text); text != "" {
		note := models.IncidentNote{Text: text, StaffID: actor.ID, StaffName: staffName(actor), CreatedAt: s.now()}
		if err := s.repo.AddIncidentNote(ctx, id, note); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetIncidentStatus(ctx, id, models.IncidentResolved); err != nil {
		return nil, err
	}
	s.logger.Info().Str("incident_id", id).Str("staff_id", actor.ID).Msg("Incident resolved")
	return s.repo.GetIncident(ctx, id)
}

func staffName(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
