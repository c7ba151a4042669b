package auth

import (
	"testing"
	"time"

	"gymbody/internal/config"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	accounts := config.DefaultAccounts()
	accounts = append(accounts, config.AccountConfig{
		Username: "owner", Password: string(hash), ID: "u_owner", Role: models.RoleOwner, GymID: "gymbody",
	})
	logger := zerolog.Nop()
	return NewService(accounts, ttl, &logger)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t, time.Hour)

	tests := []struct {
		name     string
		username string
		password string
		wantID   string
		wantErr  bool
	}{
		{"plaintext admin", "gmadmin", "gmadmin", "u_admin_1", false},
		{"username is case-insensitive", " GMOG ", "gmog", "u_og_1", false},
		{"bcrypt hash", "owner", "s3cret", "u_owner", false},
		{"wrong password", "gmsp", "nope", "", true},
		{"wrong bcrypt password", "owner", "owner", "", true},
		{"unknown user", "ghost", "ghost", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, user, err := svc.Login(tt.username, tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, tt.wantID, user.ID)

			got, err := svc.Authenticate(token)
			require.NoError(t, err)
			assert.Equal(t, user, got)
		})
	}
}

func TestAuthenticate_ExpiryAndLogout(t *testing.T) {
	svc := newTestService(t, time.Hour)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	token, _, err := svc.Login("gmog", "gmog")
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = svc.Authenticate(token)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = svc.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err = svc.Login("gmog", "gmog")
	require.NoError(t, err)
	svc.Logout(token)
	_, err = svc.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Authenticate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLookup(t *testing.T) {
	svc := newTestService(t, 0)
	u, ok := svc.Lookup("u_sp_1")
	require.True(t, ok)
	assert.Equal(t, models.RoleClientSP, u.Role)

	_, ok = svc.Lookup("u_missing")
	assert.False(t, ok)
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("gmadmin")
	require.NoError(t, err)
	assert.True(t, IsHash(h))
	assert.False(t, IsHash("gmadmin"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("gmadmin")))
}
