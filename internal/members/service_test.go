package members

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymbody/internal/config"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/models"
	"gymbody/internal/notify"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	admin   = models.User{ID: "u_admin_1", Role: models.RoleAdmin, GymID: "gymbody"}
	trainer = models.User{ID: "u_trainer", Role: models.RoleTrainer, GymID: "gymbody"}
	client  = models.User{ID: "u_og_1", Role: models.RoleClientOG, GymID: "gymbody"}
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetMembers(ctx context.Context, gymID string) ([]*models.Member, error) {
	args := m.Called(ctx, gymID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}
func (m *mockRepo) GetMember(ctx context.Context, id string) (*models.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}
func (m *mockRepo) UpsertMember(ctx context.Context, member *models.Member) error {
	return m.Called(ctx, member).Error(0)
}
func (m *mockRepo) RecordVisit(ctx context.Context, memberID string, at time.Time) error {
	return m.Called(ctx, memberID, at).Error(0)
}
func (m *mockRepo) GetPayment(ctx context.Context, memberID string) (*models.PaymentRecord, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentRecord), args.Error(1)
}
func (m *mockRepo) GetPayments(ctx context.Context, gymID string) ([]*models.MemberPayment, error) {
	args := m.Called(ctx, gymID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MemberPayment), args.Error(1)
}
func (m *mockRepo) UpsertPayment(ctx context.Context, rec *models.PaymentRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyStaff(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}
func (m *mockNotifier) NotifyChat(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

func newTestService(repo domain.MemberRepository, n domain.Notifier) (*Service, map[string]int) {
	logger := zerolog.Nop()
	bus := events.NewEventBus()
	seen := make(map[string]int)
	for _, et := range []string{events.EventMemberCheckedIn, events.EventCheckInDenied, events.EventPaymentConfirmed, events.EventPaymentReminder} {
		et := et
		bus.Subscribe(et, func(*events.Event) error {
			seen[et]++
			return nil
		})
	}
	svc := NewService(repo, n, bus, &logger)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC) }
	return svc, seen
}

func directory() []*models.Member {
	return []*models.Member{
		{ID: "1", GymID: "gymbody", Name: "Alice Johnson", Phone: "555-0101", Status: models.MemberActive},
		{ID: "2", GymID: "gymbody", Name: "bob Smith", Phone: "555-0102", Status: models.MemberFrozen},
		{ID: "3", GymID: "gymbody", Name: "Charlie Zen", Phone: "555-0103", Status: models.MemberActive},
		{ID: "4", GymID: "gymbody", Name: "Sarah Connor", Phone: "555-0104", Status: models.MemberExpired},
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	repo.On("GetMembers", ctx, "gymbody").Return(directory(), nil)
	svc, _ := newTestService(repo, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty lists everyone sorted", "", []string{"1", "2", "3", "4"}},
		{"name is case-insensitive", "SMITH", []string{"2"}},
		{"phone", "0103", []string{"3"}},
		{"shared fragment", "o", []string{"1", "2", "4"}},
		{"no match", "zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Search(ctx, trainer, "gymbody", tt.query)
			require.NoError(t, err)
			var ids []string
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := svc.Search(ctx, client, "gymbody", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	members := directory()

	t.Run("active member is recorded", func(t *testing.T) {
		repo := new(mockRepo)
		svc, seen := newTestService(repo, nil)
		repo.On("GetMember", ctx, "1").Return(members[0], nil)
		repo.On("RecordVisit", ctx, "1", svc.now()).Return(nil)

		m, err := svc.CheckIn(ctx, trainer, "1")
		require.NoError(t, err)
		assert.Equal(t, "2024-06-10 09:30", m.LastVisit)
		assert.Equal(t, 1, seen[events.EventMemberCheckedIn])
		repo.AssertExpectations(t)
	})

	for _, id := range []string{"2", "4"} {
		id := id
		t.Run("blocked status "+id, func(t *testing.T) {
			repo := new(mockRepo)
			svc, seen := newTestService(repo, nil)
			var member *models.Member
			for _, m := range members {
				if m.ID == id {
					member = m
				}
			}
			repo.On("GetMember", ctx, id).Return(member, nil)

			m, err := svc.CheckIn(ctx, admin, id)
			assert.ErrorIs(t, err, ErrAccessDenied)
			require.NotNil(t, m)
			assert.False(t, m.Status.AllowsAccess())
			assert.Equal(t, 1, seen[events.EventCheckInDenied])
			repo.AssertNotCalled(t, "RecordVisit", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("clients cannot check in", func(t *testing.T) {
		svc, _ := newTestService(new(mockRepo), nil)
		_, err := svc.CheckIn(ctx, client, "1")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown member", func(t *testing.T) {
		repo := new(mockRepo)
		svc, _ := newTestService(repo, nil)
		repo.On("GetMember", ctx, "404").Return(nil, domain.ErrMemberNotFound)
		_, err := svc.CheckIn(ctx, admin, "404")
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	})
}

func TestPayments(t *testing.T) {
	ctx := context.Background()
	ledger := []*models.MemberPayment{
		{Member: models.Member{ID: "1", Name: "Alice Johnson"}, PaymentRecord: models.PaymentRecord{PaymentStatus: models.PaymentPaid}},
		{Member: models.Member{ID: "2", Name: "Bob Smith"}, PaymentRecord: models.PaymentRecord{Balance: 45, PaymentStatus: models.PaymentFailed}},
		{Member: models.Member{ID: "4", Name: "Sarah Connor"}, PaymentRecord: models.PaymentRecord{Balance: 85, PaymentStatus: models.PaymentOutstanding}},
		{Member: models.Member{ID: "5", Name: "John Doe"}, PaymentRecord: models.PaymentRecord{Balance: 120, PaymentStatus: models.PaymentFailed}},
	}
	repo := new(mockRepo)
	repo.On("GetPayments", ctx, "gymbody").Return(ledger, nil)
	svc, _ := newTestService(repo, nil)

	tests := []struct {
		name   string
		filter PaymentFilter
		query  string
		want   []string
	}{
		{"all", FilterAll, "", []string{"1", "2", "4", "5"}},
		{"zero value is all", "", "", []string{"1", "2", "4", "5"}},
		{"failed", FilterFailed, "", []string{"2", "5"}},
		{"outstanding", FilterOutstanding, "", []string{"4"}},
		{"failed with query", FilterFailed, "john", []string{"5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats, err := svc.Payments(ctx, admin, "gymbody", tt.filter, tt.query)
			require.NoError(t, err)
			var ids []string
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, 2, stats.TotalFailed)
			assert.Equal(t, 1, stats.TotalOutstanding)
			assert.InDelta(t, 250.0, stats.OpenBalance, 0.001)
		})
	}

	_, _, err := svc.Payments(ctx, admin, "gymbody", "Paid", "")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, _, err = svc.Payments(ctx, trainer, "gymbody", FilterAll, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfirmCash(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	svc, seen := newTestService(repo, nil)

	member := &models.Member{ID: "2", GymID: "gymbody", Name: "Bob Smith"}
	repo.On("GetMember", ctx, "2").Return(member, nil)
	repo.On("GetPayment", ctx, "2").Return(&models.PaymentRecord{MemberID: "2", Balance: 45, PaymentStatus: models.PaymentFailed, DueDate: "2024-06-15"}, nil)
	repo.On("UpsertPayment", ctx, mock.MatchedBy(func(r *models.PaymentRecord) bool {
		return r.MemberID == "2" && r.Balance == 0 && r.PaymentStatus == models.PaymentPaid
	})).Return(nil)

	rec, err := svc.ConfirmCash(ctx, admin, "2")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, rec.PaymentStatus)
	assert.Zero(t, rec.Balance)
	assert.Equal(t, "2024-06-15", rec.DueDate)
	assert.Equal(t, 1, seen[events.EventPaymentConfirmed])
	repo.AssertExpectations(t)
}

func TestSendReminder(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the balance to the member chat", func(t *testing.T) {
		repo := new(mockRepo)
		n := new(mockNotifier)
		svc, seen := newTestService(repo, n)
		repo.On("GetMember", ctx, "4").Return(&models.Member{ID: "4", Name: "Sarah Connor", ChatID: 77}, nil)
		repo.On("GetPayment", ctx, "4").Return(&models.PaymentRecord{MemberID: "4", Balance: 85, PaymentStatus: models.PaymentOutstanding, DueDate: "2024-06-20"}, nil)
		n.On("NotifyChat", ctx, int64(77), notify.PaymentReminder("Sarah Connor", 85, "2024-06-20")).Return(nil)

		require.NoError(t, svc.SendReminder(ctx, admin, "4"))
		assert.Equal(t, 1, seen[events.EventPaymentReminder])
		n.AssertExpectations(t)
	})

	t.Run("no chat linked", func(t *testing.T) {
		repo := new(mockRepo)
		nop := zerolog.Nop()
		svc, seen := newTestService(repo, notify.NewLogNotifier(&nop))
		repo.On("GetMember", ctx, "2").Return(&models.Member{ID: "2", Name: "Bob Smith"}, nil)
		repo.On("GetPayment", ctx, "2").Return(&models.PaymentRecord{MemberID: "2", Balance: 45, PaymentStatus: models.PaymentFailed}, nil)

		err := svc.SendReminder(ctx, admin, "2")
		assert.ErrorIs(t, err, notify.ErrNoChat)
		assert.Zero(t, seen[events.EventPaymentReminder])
	})

	t.Run("nothing to remind about", func(t *testing.T) {
		repo := new(mockRepo)
		n := new(mockNotifier)
		svc, _ := newTestService(repo, n)
		repo.On("GetMember", ctx, "1").Return(&models.Member{ID: "1", ChatID: 5}, nil)
		repo.On("GetPayment", ctx, "1").Return(nil, domain.ErrMemberNotFound)

		err := svc.SendReminder(ctx, admin, "1")
		assert.ErrorIs(t, err, ErrNothingOutstanding)
		n.AssertNotCalled(t, "NotifyChat", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("send failure is wrapped", func(t *testing.T) {
		repo := new(mockRepo)
		n := new(mockNotifier)
		svc, _ := newTestService(repo, n)
		boom := errors.New("telegram down")
		repo.On("GetMember", ctx, "5").Return(&models.Member{ID: "5", Name: "John Doe", ChatID: 9}, nil)
		repo.On("GetPayment", ctx, "5").Return(&models.PaymentRecord{MemberID: "5", Balance: 120, PaymentStatus: models.PaymentFailed}, nil)
		n.On("NotifyChat", ctx, int64(9), mock.Anything).Return(boom)

		err := svc.SendReminder(ctx, admin, "5")
		assert.ErrorIs(t, err, boom)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	svc, _ := newTestService(repo, nil)

	seeds := []config.MemberSeed{
		{Member: models.Member{ID: "1", Name: "Alice Johnson"}},
		{Member: models.Member{ID: "2", Name: "Bob Smith", Status: models.MemberFrozen}, Balance: 45, PaymentStatus: models.PaymentFailed, DueDate: "2024-06-15"},
	}
	repo.On("GetMember", ctx, "1").Return(&models.Member{ID: "1"}, nil)
	repo.On("GetMember", ctx, "2").Return(nil, domain.ErrMemberNotFound)
	repo.On("UpsertMember", ctx, mock.MatchedBy(func(m *models.Member) bool {
		return m.ID == "2" && m.GymID == models.DefaultGymID && m.Status == models.MemberFrozen
	})).Return(nil)
	repo.On("UpsertPayment", ctx, mock.MatchedBy(func(r *models.PaymentRecord) bool {
		return r.MemberID == "2" && r.Balance == 45 && r.PaymentStatus == models.PaymentFailed
	})).Return(nil)

	added, err := svc.Seed(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	repo.AssertExpectations(t)
}
