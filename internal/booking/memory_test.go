package booking

import (
	"context"
	"testing"

	"gymbody/internal/domain"
	"gymbody/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.AddSessions(ctx, []*models.ClassSession{
		{ID: "1", GymID: "gymbody", Date: "2024-06-09", Capacity: 2},
		{ID: "2", GymID: "gymbody", Date: "2024-06-10", Capacity: 2},
		{ID: "3", GymID: "other", Date: "2024-06-09", Capacity: 2},
	}))

	all, err := store.GetSessions(ctx, "gymbody")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	last, err := store.LastSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	// Callers cannot mutate the stored copy.
	all[0].Booked = 99
	s, err := store.GetSession(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Booked)

	_, err = store.AddBooking(ctx, &models.Booking{UserID: "u1", SessionID: "1"})
	require.NoError(t, err)

	removed, err := store.DeleteSessionsBefore(ctx, "gymbody", "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.GetSession(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	held, _ := store.GetUserBookings(ctx, "u1")
	assert.Empty(t, held)

	// Other gyms keep their past days.
	_, err = store.GetSession(ctx, "3")
	assert.NoError(t, err)
}

func TestMemoryStore_Bookings(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.AddSessions(ctx, []*models.ClassSession{
		{ID: "a", GymID: "gymbody", Date: "2024-06-10", Booked: 3, Capacity: 4},
	}))

	s, err := store.AddBooking(ctx, &models.Booking{UserID: "u1", SessionID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Booked)

	_, err = store.AddBooking(ctx, &models.Booking{UserID: "u1", SessionID: "a"})
	assert.ErrorIs(t, err, domain.ErrAlreadyBooked)

	_, err = store.AddBooking(ctx, &models.Booking{UserID: "u1", SessionID: "missing"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	bookings, err := store.GetUserBookings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "2024-06-10", bookings[0].SessionDate)
	assert.False(t, bookings[0].CreatedAt.IsZero())

	bySession, err := store.GetSessionBookings(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, bySession, 1)

	s, err = store.RemoveBooking(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Booked)

	_, err = store.RemoveBooking(ctx, "u1", "a")
	assert.ErrorIs(t, err, domain.ErrNotBooked)
}

func TestMemoryStore_RemoveClampsAtZero(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.AddSessions(ctx, []*models.ClassSession{{ID: "a", Capacity: 2}}))

	_, err := store.AddBooking(ctx, &models.Booking{UserID: "u1", SessionID: "a"})
	require.NoError(t, err)

	// Reseeding resets the counter below the number of holders.
	require.NoError(t, store.AddSessions(ctx, []*models.ClassSession{{ID: "a", Capacity: 2, Booked: 0}}))

	s, err := store.RemoveBooking(ctx, "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Booked)
}
