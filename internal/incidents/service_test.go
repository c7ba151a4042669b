package incidents

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"gymbody/internal/database"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = models.User{ID: "u_admin_1", Name: "Gym Admin", Role: models.RoleAdmin, GymID: "gymbody"}
	owner  = models.User{ID: "u_owner", Role: models.RoleOwner, GymID: "gymbody"}
	client = models.User{ID: "u_og_1", Role: models.RoleClientOG, GymID: "gymbody"}
	rival  = models.User{ID: "u_admin_2", Role: models.RoleAdmin, GymID: "elsewhere"}
)

type fixture struct {
	svc    *Service
	clock  time.Time
	logged []events.IncidentEventPayload
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{clock: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
	bus := events.NewEventBus()
	bus.Subscribe(events.EventIncidentLogged, func(e *events.Event) error {
		var p events.IncidentEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		f.logged = append(f.logged, p)
		return nil
	})

	f.svc = NewService(db, bus, &logger)
	seq := 0
	f.svc.newID = func() string { seq++; return fmt.Sprintf("inc-%d", seq) }
	// every call moves the clock an hour so ordering is observable
	f.svc.now = func() time.Time { f.clock = f.clock.Add(time.Hour); return f.clock }
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	entries := []Entry{
		{Category: models.IncidentEquipment, Title: "Broken Treadmill #4", Text: "Belt is slipping under load. Tagged as out of order."},
		{Category: models.IncidentMember, Title: "Dispute over late cancellation", Text: "Member unhappy about the fee. Explained policy."},
		{Category: models.IncidentCleaning, Title: "Spill near the squat racks", Text: "Mopped and put up a sign."},
	}
	for _, e := range entries {
		_, err := f.svc.Log(ctx, admin, e)
		require.NoError(t, err)
	}
}

func titles(list []*models.Incident) []string {
	out := make([]string, 0, len(list))
	for _, inc := range list {
		out = append(out, inc.Title)
	}
	return out
}

func TestService_Log(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inc, err := f.svc.Log(ctx, admin, Entry{Category: models.IncidentInjury, Title: "  Sprained ankle  ", Text: "Ice applied, member sent home."})
	require.NoError(t, err)
	assert.Equal(t, "inc-1", inc.ID)
	assert.Equal(t, "Sprained ankle", inc.Title)
	assert.Equal(t, models.IncidentOpen, inc.Status)
	assert.Equal(t, "Gym Admin", inc.StaffName)
	require.Len(t, inc.Notes, 1)
	assert.Equal(t, "Ice applied, member sent home.", inc.Notes[0].Text)

	stored, err := f.svc.Get(ctx, admin, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, inc.Title, stored.Title)
	assert.True(t, inc.CreatedAt.Equal(stored.CreatedAt))
	require.Len(t, stored.Notes, 1)

	require.Len(t, f.logged, 1)
	assert.Equal(t, "Injury", f.logged[0].Category)
	assert.Equal(t, "Sprained ankle", f.logged[0].Title)
}

func TestService_LogValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name  string
		actor models.User
		entry Entry
		want  error
	}{
		{"client", client, Entry{Category: models.IncidentEquipment, Title: "x", Text: "y"}, ErrForbidden},
		{"bad category", admin, Entry{Category: "Fire", Title: "x", Text: "y"}, ErrInvalidCategory},
		{"no title", admin, Entry{Category: models.IncidentEquipment, Title: "  ", Text: "y"}, ErrMissingTitle},
		{"no text", admin, Entry{Category: models.IncidentEquipment, Title: "x"}, ErrMissingText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Log(ctx, tt.actor, tt.entry)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.logged)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	all, err := f.svc.List(ctx, admin, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Spill near the squat racks", "Dispute over late cancellation", "Broken Treadmill #4"}, titles(all))

	byTitle, err := f.svc.List(ctx, admin, "TREADMILL", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Broken Treadmill #4"}, titles(byTitle))

	byNote, err := f.svc.List(ctx, owner, "policy", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dispute over late cancellation"}, titles(byNote))

	byCategory, err := f.svc.List(ctx, admin, "", models.IncidentCleaning)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spill near the squat racks"}, titles(byCategory))

	none, err := f.svc.List(ctx, admin, "treadmill", models.IncidentCleaning)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.List(ctx, admin, "", "Fire")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = f.svc.List(ctx, client, "", "")
	assert.ErrorIs(t, err, ErrForbidden)

	other, err := f.svc.List(ctx, rival, "", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_FollowUpAndResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t)

	inc, err := f.svc.AddNote(ctx, admin, "inc-1", "Technician called. Expected Wednesday.")
	require.NoError(t, err)
	require.Len(t, inc.Notes, 2)
	assert.Equal(t, "Technician called. Expected Wednesday.", inc.Notes[1].Text)
	assert.True(t, inc.Notes[1].CreatedAt.After(inc.Notes[0].CreatedAt))

	found, err := f.svc.List(ctx, admin, "wednesday", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Broken Treadmill #4"}, titles(found))

	_, err = f.svc.AddNote(ctx, admin, "inc-1", "   ")
	assert.ErrorIs(t, err, ErrMissingText)
	_, err = f.svc.AddNote(ctx, admin, "missing", "x")
	assert.ErrorIs(t, err, domain.ErrIncidentNotFound)
	_, err = f.svc.AddNote(ctx, rival, "inc-1", "x")
	assert.ErrorIs(t, err, domain.ErrIncidentNotFound)

	inc, err = f.svc.Resolve(ctx, admin, "inc-1", "Belt replaced.")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, inc.Status)
	require.Len(t, inc.Notes, 3)

	_, err = f.svc.Resolve(ctx, admin, "inc-1", "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}
