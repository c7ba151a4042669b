package analytics

import (
	"context"
	"io"
	"testing"
	"time"

	"gymbody/internal/database"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin   = models.User{ID: "u_admin_1", Role: models.RoleAdmin, GymID: "gymbody"}
	trainer = models.User{ID: "u_trainer", Role: models.RoleTrainer, GymID: "gymbody"}
)

type utcZone struct{}

func (utcZone) Location(string) *time.Location { return time.UTC }

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.AddSessions(ctx, []*models.ClassSession{
		{ID: "1", GymID: "gymbody", Date: "2024-06-08", Title: "Open Gym", Instructor: "Coach Sarah", Time: "6:00 AM", Category: models.CategoryOpenGym, Capacity: 8},
		{ID: "2", GymID: "gymbody", Date: "2024-06-10", Title: "Open Gym", Instructor: "Coach Sarah", Time: "6:00 AM", Category: models.CategoryOpenGym, Capacity: 8},
		{ID: "3", GymID: "gymbody", Date: "2024-06-10", Title: "Semi Personal", Instructor: "Elite Mike", Time: "9:00 AM", Category: models.CategorySemiPersonal, Capacity: 4},
		{ID: "4", GymID: "gymbody", Date: "2024-05-01", Title: "Open Gym", Instructor: "Coach Sarah", Time: "6:00 AM", Category: models.CategoryOpenGym, Capacity: 8},
		{ID: "5", GymID: "elsewhere", Date: "2024-06-10", Title: "Yoga", Instructor: "Coach Nia", Time: "9:00 AM", Category: models.CategoryYoga, Capacity: 8},
	}))
	book := func(user, session string) {
		_, err := db.AddBooking(ctx, &models.Booking{UserID: user, SessionID: session, BookedBy: user})
		require.NoError(t, err)
	}
	book("u1", "1")
	book("u1", "2")
	book("u2", "2")
	book("u2", "3")
	book("u3", "4")
	book("u3", "5")

	require.NoError(t, db.UpsertMember(ctx, &models.Member{ID: "m1", GymID: "gymbody", Name: "Marcus Chen", Status: models.MemberActive}))
	require.NoError(t, db.UpsertPayment(ctx, &models.PaymentRecord{MemberID: "m1", Balance: 45, PaymentStatus: models.PaymentOutstanding}))
	require.NoError(t, db.RecordVisit(ctx, "m1", time.Date(2024, 6, 9, 7, 0, 0, 0, time.UTC)))
	require.NoError(t, db.RecordVisit(ctx, "m1", time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)))
	require.NoError(t, db.RecordVisit(ctx, "m1", time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)))

	svc := NewService(db, db, utcZone{}, &logger)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }
	return svc, db
}

func TestService_Report(t *testing.T) {
	svc, _ := newTestService(t)

	r, err := svc.Report(context.Background(), admin, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-04", r.From)
	assert.Equal(t, "2024-06-10", r.To)
	assert.Equal(t, []models.DayCount{{Date: "2024-06-08", Count: 1}, {Date: "2024-06-10", Count: 3}}, r.BookingsPerDay)
	assert.Equal(t, 4, r.TotalBookings)
	assert.Equal(t, map[models.Category]int{models.CategoryOpenGym: 3, models.CategorySemiPersonal: 1}, r.BookingsByCategory)
	assert.Equal(t, []models.DayCount{{Date: "2024-06-09", Count: 1}, {Date: "2024-06-10", Count: 2}}, r.VisitsPerDay)
	assert.Equal(t, 3, r.TotalVisits)
	assert.InDelta(t, 45.0, r.OpenBalance, 0.001)
}

func TestService_ReportRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r, err := svc.Report(ctx, admin, "2024-05-01", "2024-05-31")
	require.NoError(t, err)
	assert.Equal(t, []models.DayCount{{Date: "2024-05-01", Count: 1}}, r.BookingsPerDay)
	assert.Empty(t, r.VisitsPerDay)

	for _, tc := range []struct{ from, to string }{
		{"2024-06-10", "2024-06-01"},
		{"yesterday", ""},
		{"2024-01-01", "2024-06-10"},
	} {
		_, err := svc.Report(ctx, admin, tc.from, tc.to)
		assert.ErrorIs(t, err, ErrInvalidRange, "%s..%s", tc.from, tc.to)
	}

	_, err = svc.Report(ctx, trainer, "", "")
	assert.ErrorIs(t, err, ErrForbidden)
}
