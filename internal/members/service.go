// Package members is the front desk side of the member directory: search, check-in
// and payment follow-up.
package members

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gymbody/internal/access"
	"gymbody/internal/config"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/models"
	"gymbody/internal/notify"

	"github.com/rs/zerolog"
)

var (
	ErrAccessDenied       = errors.New("membership does not allow access")
	ErrForbidden          = errors.New("action not permitted for this role")
	ErrNothingOutstanding = errors.New("member has no open balance")
	ErrInvalidFilter      = errors.New("unknown payment filter")
)

// PaymentFilter selects payment listings. The zero value lists everyone.
type PaymentFilter string

const (
	FilterAll         PaymentFilter = "all"
	FilterFailed      PaymentFilter = PaymentFilter(models.PaymentFailed)
	FilterOutstanding PaymentFilter = PaymentFilter(models.PaymentOutstanding)
)

// PaymentStats are the counters shown above the payment list.
type PaymentStats struct {
	TotalFailed      int     `json:"total_failed"`
	TotalOutstanding int     `json:"total_outstanding"`
	OpenBalance      float64 `json:"open_balance"`
}

type Service struct {
	repo     domain.MemberRepository
	notifier domain.Notifier
	events   domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewService(repo domain.MemberRepository, notifier domain.Notifier, eventBus domain.EventPublisher, logger *zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		events:   eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// Seed inserts members that do not exist yet. Existing rows are left alone so edits
// made at runtime survive a restart.
func (s *Service) Seed(ctx context.Context, seeds []config.MemberSeed) (int, error) {
	added := 0
	for i := range seeds {
		seed := seeds[i]
		_, err := s.repo.GetMember(ctx, seed.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrMemberNotFound) {
			return added, err
		}

		m := seed.Member
		if m.GymID == "" {
			m.GymID = models.DefaultGymID
		}
		if m.Status == "" {
			m.Status = models.MemberActive
		}
		if err := s.repo.UpsertMember(ctx, &m); err != nil {
			return added, fmt.Errorf("seed member %s: %w", m.ID, err)
		}

		status := seed.PaymentStatus
		if status == "" {
			status = models.PaymentPaid
		}
		rec := &models.PaymentRecord{MemberID: m.ID, Balance: seed.Balance, PaymentStatus: status, DueDate: seed.DueDate}
		if err := s.repo.UpsertPayment(ctx, rec); err != nil {
			return added, fmt.Errorf("seed payment %s: %w", m.ID, err)
		}
		added++
	}
	if added > 0 {
		s.logger.Info().Int("count", added).Msg("Seeded members")
	}
	return added, nil
}

// Search matches name or phone, case-insensitively. An empty query returns everyone.
func (s *Service) Search(ctx context.Context, actor models.User, gymID, query string) ([]*models.Member, error) {
	if !access.For(actor.Role).Can(access.ActionViewMembers) {
		return nil, ErrForbidden
	}
	all, err := s.repo.GetMembers(ctx, gymID)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []*models.Member
	for _, m := range all {
		if matches(q, m.Name, m.Phone) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// CheckIn records a visit. Expired and frozen memberships are turned away with
// ErrAccessDenied and the returned member carries the blocking status.
func (s *Service) CheckIn(ctx context.Context, actor models.User, memberID string) (*models.Member, error) {
	if !access.For(actor.Role).Can(access.ActionCheckIn) {
		return nil, ErrForbidden
	}
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if !m.Status.AllowsAccess() {
		s.logger.Warn().Str("member_id", m.ID).Str("status", string(m.Status)).Msg("Check-in denied")
		s.publishEvent(events.EventCheckInDenied, m, actor.ID, 0)
		return m, fmt.Errorf("%w: %s membership", ErrAccessDenied, m.Status)
	}

	now := s.now()
	if err := s.repo.RecordVisit(ctx, m.ID, now); err != nil {
		return nil, err
	}
	m.LastVisit = now.Format("2006-01-02 15:04")
	s.publishEvent(events.EventMemberCheckedIn, m, actor.ID, 0)
	return m, nil
}

// Payments lists members with their billing records, filtered by status and query.
func (s *Service) Payments(ctx context.Context, actor models.User, gymID string, filter PaymentFilter, query string) ([]*models.MemberPayment, PaymentStats, error) {
	if !access.For(actor.Role).Can(access.ActionViewPayments) {
		return nil, PaymentStats{}, ErrForbidden
	}
	switch filter {
	case "", FilterAll, FilterFailed, FilterOutstanding:
	default:
		return nil, PaymentStats{}, ErrInvalidFilter
	}

	all, err := s.repo.GetPayments(ctx, gymID)
	if err != nil {
		return nil, PaymentStats{}, err
	}

	var stats PaymentStats
	q := strings.ToLower(strings.TrimSpace(query))
	var out []*models.MemberPayment
	for _, p := range all {
		switch p.PaymentStatus {
		case models.PaymentFailed:
			stats.TotalFailed++
		case models.PaymentOutstanding:
			stats.TotalOutstanding++
		}
		stats.OpenBalance += p.Balance

		if filter != "" && filter != FilterAll && PaymentFilter(p.PaymentStatus) != filter {
			continue
		}
		if !matches(q, p.Name, p.Phone) {
			continue
		}
		out = append(out, p)
	}
	return out, stats, nil
}

// ConfirmCash settles the balance after a cash payment at the desk.
func (s *Service) ConfirmCash(ctx context.Context, actor models.User, memberID string) (*models.PaymentRecord, error) {
	if !access.For(actor.Role).Can(access.ActionViewPayments) {
		return nil, ErrForbidden
	}
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	rec, err := s.payment(ctx, memberID)
	if err != nil {
		return nil, err
	}
	paid := rec.Balance

	rec.Balance = 0
	rec.PaymentStatus = models.PaymentPaid
	rec.UpdatedAt = s.now()
	if err := s.repo.UpsertPayment(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("member_id", m.ID).
		Str("actor_id", actor.ID).
		Float64("amount", paid).
		Msg("Cash payment confirmed")
	s.publishEvent(events.EventPaymentConfirmed, m, actor.ID, paid)
	return rec, nil
}

// SendReminder messages a member about the open balance. Members without a linked
// chat get notify.ErrNoChat.
func (s *Service) SendReminder(ctx context.Context, actor models.User, memberID string) error {
	if !access.For(actor.Role).Can(access.ActionViewPayments) {
		return ErrForbidden
	}
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	rec, err := s.payment(ctx, memberID)
	if err != nil {
		return err
	}
	if rec.PaymentStatus == models.PaymentPaid && rec.Balance <= 0 {
		return ErrNothingOutstanding
	}
	if s.notifier == nil {
		return notify.ErrNoChat
	}

	if err := s.notifier.NotifyChat(ctx, m.ChatID, notify.PaymentReminder(m.Name, rec.Balance, rec.DueDate)); err != nil {
		return fmt.Errorf("send reminder to %s: %w", m.ID, err)
	}
	s.publishEvent(events.EventPaymentReminder, m, actor.ID, rec.Balance)
	return nil
}

// payment returns the billing record, treating a member without one as paid up.
func (s *Service) payment(ctx context.Context, memberID string) (*models.PaymentRecord, error) {
	rec, err := s.repo.GetPayment(ctx, memberID)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return &models.PaymentRecord{MemberID: memberID, PaymentStatus: models.PaymentPaid}, nil
	}
	return rec, err
}

func (s *Service) publishEvent(eventType string, m *models.Member, actorID string, balance float64) {
	if s.events == nil {
		return
	}

	payload := events.MemberEventPayload{
		GymID:      m.GymID,
		MemberID:   m.ID,
		MemberName: m.Name,
		Status:     string(m.Status),
		Balance:    balance,
		ChatID:     m.ChatID,
		ActorID:    actorID,
		At:         s.now(),
	}

	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("member_id", m.ID).Msg("publish event error")
	}
}
