// Package assistant fronts the generative-language chat personas.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/metrics"
	"gymbody/internal/models"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	ErrRateLimited = errors.New("too many chat messages, slow down")
	ErrInvalidMode = errors.New("unknown chat mode")
	ErrEmptyText   = errors.New("message text is required")
)

type Options struct {
	RateLimit  int
	RateWindow time.Duration
	RenderHTML bool
}

// Reply is the answer to one user turn. Fallback marks a canned answer.
type Reply struct {
	Mode     models.ChatMode `json:"mode"`
	Text     string          `json:"text"`
	HTML     string          `json:"html,omitempty"`
	Fallback bool            `json:"fallback"`
	At       time.Time       `json:"at"`
}

type Service struct {
	model    domain.ChatModel
	state    domain.StateRepository
	registry *Registry
	markdown goldmark.Markdown
	opts     Options
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewService builds the chat front. A nil model keeps the assistant offline: every
// message gets FallbackOffline.
func NewService(model domain.ChatModel, state domain.StateRepository, opts Options, logger *zerolog.Logger) *Service {
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Duration(models.RateLimitWindow) * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = models.RateLimitMessages
	}
	return &Service{
		model:    model,
		state:    state,
		registry: NewRegistry(),
		markdown: goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// Send forwards one user turn to the persona of mode at gym. Model failures never
// surface as errors; they become fallback replies. Errors are only returned for bad
// input and rate limiting.
func (s *Service) Send(ctx context.Context, gym models.GymConfig, userID string, mode models.ChatMode, text string) (*Reply, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if s.state != nil {
		ok, err := s.state.CheckRateLimit(ctx, userID, s.opts.RateLimit, s.opts.RateWindow)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Chat rate limit check failed")
		} else if !ok {
			metrics.IncChat(string(mode), "rate_limited")
			return nil, ErrRateLimited
		}
	}

	key := SessionKey{UserID: userID, GymID: gym.ID, Mode: mode}
	session := s.registry.Get(key, SystemInstruction(mode, gymName(gym)))

	session.mu.Lock()
	defer session.mu.Unlock()

	reply := &Reply{Mode: mode, At: s.now()}
	if s.model == nil {
		reply.Text, reply.Fallback = FallbackOffline, true
		metrics.IncChat(string(mode), "offline")
		return s.render(reply), nil
	}

	history := append([]models.ChatMessage(nil), session.history...)
	answer, err := s.model.Generate(ctx, session.Instruction, history, text)
	switch {
	case err != nil:
		s.logger.Error().Err(err).Str("mode", string(mode)).Str("gym", gym.ID).Msg("Chat model request failed")
		reply.Text, reply.Fallback = FallbackOffline, true
		metrics.IncChat(string(mode), "error")
	case strings.TrimSpace(answer) == "":
		reply.Text, reply.Fallback = FallbackEmpty, true
		metrics.IncChat(string(mode), "empty")
	default:
		reply.Text = answer
		session.append(RoleUser, text, reply.At)
		session.append(RoleModel, answer, s.now())
		metrics.IncChat(string(mode), "ok")
	}
	return s.render(reply), nil
}

// History returns the turns of a conversation, or nil if it never started.
func (s *Service) History(gymID, userID string, mode models.ChatMode) []models.ChatMessage {
	sess, ok := s.registry.Lookup(SessionKey{UserID: userID, GymID: gymID, Mode: mode})
	if !ok {
		return nil
	}
	return sess.History()
}

func (s *Service) Reset(gymID, userID string, mode models.ChatMode) {
	s.registry.Reset(SessionKey{UserID: userID, GymID: gymID, Mode: mode})
}

// RenderHTML converts a markdown reply to HTML. Raw HTML in the input is escaped.
func (s *Service) RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Service) render(r *Reply) *Reply {
	if !s.opts.RenderHTML {
		return r
	}
	out, err := s.RenderHTML(r.Text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to render chat reply")
		return r
	}
	r.HTML = out
	return r
}

func gymName(g models.GymConfig) string {
	if g.Name != "" {
		return g.Name
	}
	return models.DefaultGymName
}
