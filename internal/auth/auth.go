// Package auth is the static account table and the bearer tokens issued from it.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"gymbody/internal/config"
	"gymbody/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type account struct {
	user     models.User
	password string
	hashed   bool
}

type session struct {
	user      models.User
	expiresAt time.Time
}

// Service checks passwords against the configured accounts and keeps issued tokens
// in memory. Tokens do not survive a restart.
type Service struct {
	accounts map[string]account
	ttl      time.Duration
	logger   *zerolog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	tokens map[string]session
}

func NewService(accounts []config.AccountConfig, ttl time.Duration, logger *zerolog.Logger) *Service {
	m := make(map[string]account, len(accounts))
	for _, a := range accounts {
		m[strings.ToLower(a.Username)] = account{
			user:     a.User(),
			password: a.Password,
			hashed:   IsHash(a.Password),
		}
	}
	return &Service{
		accounts: m,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		tokens:   make(map[string]session),
	}
}

// Login returns a fresh token for valid credentials. Usernames are case-insensitive.
func (s *Service) Login(username, password string) (string, models.User, error) {
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(username))]
	if !ok || !acc.check(password) {
		s.logger.Warn().Str("username", username).Msg("Login failed")
		return "", models.User{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	sess := session{user: acc.user}
	if s.ttl > 0 {
		sess.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.tokens[token] = sess
	s.mu.Unlock()

	s.logger.Info().Str("user_id", acc.user.ID).Str("role", string(acc.user.Role)).Msg("User logged in")
	return token, acc.user, nil
}

// Authenticate resolves a token to its user. Expired tokens are dropped.
func (s *Service) Authenticate(token string) (models.User, error) {
	s.mu.RLock()
	sess, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, ErrInvalidToken
	}
	if !sess.expiresAt.IsZero() && !s.now().Before(sess.expiresAt) {
		s.Logout(token)
		return models.User{}, ErrInvalidToken
	}
	return sess.user, nil
}

func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// Lookup returns the public profile of a configured account by user id.
func (s *Service) Lookup(userID string) (models.User, bool) {
	for _, a := range s.accounts {
		if a.user.ID == userID {
			return a.user, true
		}
	}
	return models.User{}, false
}

func (a account) check(password string) bool {
	if a.hashed {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
}

// HashPassword returns a bcrypt hash suitable for the accounts section of the config.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// IsHash reports whether s looks like a bcrypt hash.
func IsHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
