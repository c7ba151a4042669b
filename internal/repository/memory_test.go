package repository

import (
	"context"
	"testing"
	"time"

	"gymbody/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.UserState{
			UserID:      "u_og_1",
			CurrentStep: models.StateConfirmDoubleBooking,
			TempData:    map[string]interface{}{models.TempSessionID: "12"},
		}
		require.NoError(t, repo.SetState(ctx, state))

		got, err := repo.GetState(ctx, "u_og_1")
		require.NoError(t, err)
		assert.Equal(t, "12", got.GetString(models.TempSessionID))
		assert.Equal(t, now, got.UpdatedAt)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.ClearState(ctx, "u_og_1"))
		got, err := repo.GetState(ctx, "u_og_1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("StateExpires", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: "u_sp_1"}))
		now = now.Add(2 * time.Hour)
		got, err := repo.GetState(ctx, "u_sp_1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := "u_rate"
		allowed, _ := repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
		assert.True(t, allowed)
	})
}
