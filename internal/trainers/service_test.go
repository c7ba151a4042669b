package trainers

import (
	"context"
	"io"
	"testing"
	"time"

	"gymbody/internal/database"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	nicosia, _ = time.LoadLocation("Asia/Nicosia")

	admin   = models.User{ID: "u_admin_1", Role: models.RoleAdmin, GymID: "gymbody"}
	trainer = models.User{ID: "u_trainer", Role: models.RoleTrainer, GymID: "gymbody"}
	client  = models.User{ID: "u_og_1", Role: models.RoleClientOG, GymID: "gymbody"}
)

type fixedZone struct{}

func (fixedZone) Location(string) *time.Location { return nicosia }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyStaff(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *mockNotifier) NotifyChat(ctx context.Context, chatID int64, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

type fixture struct {
	svc      *Service
	db       *database.DB
	notifier *mockNotifier
	subs     []events.TrainerEventPayload
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.AddSessions(ctx, []*models.ClassSession{
		{ID: "1", GymID: "gymbody", Date: "2024-06-10", Title: "Power Pilates", Instructor: "Coach Sarah", Time: "9:00 AM", Duration: "60 min", Category: models.CategoryPilates, Capacity: 8},
		{ID: "2", GymID: "gymbody", Date: "2024-06-10", Title: "Cardio Blast", Instructor: "Elite Mike", Time: "7:00 AM", Duration: "45 min", Category: models.CategoryCardio, Capacity: 8},
		{ID: "3", GymID: "gymbody", Date: "2024-06-10", Title: "Strength Group A", Instructor: "Trainer Mark", Time: "12:00 PM", Duration: "60 min", Category: models.CategoryStrength, Capacity: 8},
		{ID: "4", GymID: "gymbody", Date: "2024-06-11", Title: "Performance Core", Instructor: "Coach Sarah", Time: "6:00 PM", Duration: "45 min", Category: models.CategoryStrength, Capacity: 8},
		{ID: "5", GymID: "elsewhere", Date: "2024-06-10", Title: "Yoga Flow", Instructor: "Coach Nia", Time: "9:00 AM", Duration: "60 min", Category: models.CategoryYoga, Capacity: 8},
	}))
	for _, user := range []string{"m1", "m2"} {
		_, err := db.AddBooking(ctx, &models.Booking{UserID: user, SessionID: "2", BookedBy: user})
		require.NoError(t, err)
	}
	require.NoError(t, db.UpsertMember(ctx, &models.Member{ID: "m1", GymID: "gymbody", Name: "Marcus Chen", Status: models.MemberActive, ChatID: 4242}))

	f := &fixture{db: db, notifier: new(mockNotifier)}
	bus := events.NewEventBus()
	bus.Subscribe(events.EventSubstitute, func(e *events.Event) error {
		var p events.TrainerEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		f.subs = append(f.subs, p)
		return nil
	})

	f.svc = NewService(db, db, db, f.notifier, bus, fixedZone{}, &logger)
	// 08:00 in Nicosia on 2024-06-10
	f.svc.now = func() time.Time { return time.Date(2024, 6, 10, 5, 0, 0, 0, time.UTC) }
	return f
}

func TestService_Roster(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	roster, err := f.svc.Roster(ctx, trainer, "")
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, "Coach Sarah", roster[0].Name)
	assert.Equal(t, "Elite Mike", roster[1].Name)
	assert.Equal(t, "Trainer Mark", roster[2].Name)
	for _, tr := range roster {
		assert.Equal(t, models.TrainerOnTime, tr.Status)
	}
	require.Len(t, roster[0].Sessions, 1)
	assert.Equal(t, "1", roster[0].Sessions[0].ID)

	tomorrow, err := f.svc.Roster(ctx, admin, "2024-06-11")
	require.NoError(t, err)
	require.Len(t, tomorrow, 1)
	assert.Equal(t, "Performance Core", tomorrow[0].Sessions[0].Title)

	_, err = f.svc.Roster(ctx, client, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_SetStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.SetStatus(ctx, admin, "", "Elite Mike", models.TrainerAbsent))
	require.NoError(t, f.svc.SetStatus(ctx, admin, "", "Trainer Mark", models.TrainerLate))
	require.NoError(t, f.svc.SetStatus(ctx, admin, "", "Trainer Mark", models.TrainerOnTime))

	roster, err := f.svc.Roster(ctx, admin, "2024-06-10")
	require.NoError(t, err)
	got := map[string]models.TrainerStatus{}
	for _, tr := range roster {
		got[tr.Name] = tr.Status
	}
	assert.Equal(t, map[string]models.TrainerStatus{
		"Coach Sarah":  models.TrainerOnTime,
		"Elite Mike":   models.TrainerAbsent,
		"Trainer Mark": models.TrainerOnTime,
	}, got)

	// statuses are per day
	tomorrow, err := f.svc.Roster(ctx, admin, "2024-06-11")
	require.NoError(t, err)
	require.Len(t, tomorrow, 1)
	assert.Equal(t, models.TrainerOnTime, tomorrow[0].Status)

	assert.ErrorIs(t, f.svc.SetStatus(ctx, admin, "", "Elite Mike", "sick"), ErrInvalidStatus)
	assert.ErrorIs(t, f.svc.SetStatus(ctx, admin, "", "Coach Nia", models.TrainerLate), ErrUnknownTrainer)
	assert.ErrorIs(t, f.svc.SetStatus(ctx, trainer, "", "Elite Mike", models.TrainerLate), ErrForbidden)
}

func TestService_AssignSubstitute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.SetStatus(ctx, admin, "", "Elite Mike", models.TrainerAbsent))

	f.notifier.On("NotifyChat", mock.Anything, int64(4242), "Cardio Blast on 2024-06-10 at 7:00 AM will be led by Coach Sarah instead of Elite Mike.").
		Return(nil).Once()

	res, err := f.svc.AssignSubstitute(ctx, admin, "2", "Coach Sarah")
	require.NoError(t, err)
	assert.Equal(t, "Coach Sarah", res.Session.Instructor)
	assert.Equal(t, "Elite Mike", res.Replaced)
	assert.Equal(t, 2, res.Holders)
	assert.Equal(t, 1, res.Notified)
	f.notifier.AssertExpectations(t)

	stored, err := f.db.GetSession(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Coach Sarah", stored.Instructor)
	assert.Equal(t, 2, stored.Booked)

	require.Len(t, f.subs, 1)
	assert.Equal(t, "Elite Mike", f.subs[0].Trainer)
	assert.Equal(t, "Coach Sarah", f.subs[0].Substitute)
	assert.ElementsMatch(t, []string{"m1", "m2"}, f.subs[0].Holders)
}

func TestService_AssignSubstituteRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.SetStatus(ctx, admin, "", "Trainer Mark", models.TrainerLate))

	tests := []struct {
		name       string
		actor      models.User
		session    string
		substitute string
		want       error
	}{
		{"trainer role", trainer, "1", "Elite Mike", ErrForbidden},
		{"missing session", admin, "99", "Elite Mike", domain.ErrSessionNotFound},
		{"other gym", admin, "5", "Elite Mike", domain.ErrSessionNotFound},
		{"same instructor", admin, "1", "coach sarah", ErrSameTrainer},
		{"late substitute", admin, "1", "Trainer Mark", ErrUnavailable},
		{"blank", admin, "1", "  ", ErrUnknownTrainer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AssignSubstitute(ctx, tt.actor, tt.session, tt.substitute)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s, err := f.db.GetSession(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Coach Sarah", s.Instructor)
	assert.Empty(t, f.subs)
	f.notifier.AssertNotCalled(t, "NotifyChat", mock.Anything, mock.Anything, mock.Anything)
}
