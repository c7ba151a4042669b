package assistant

import (
	"sync"
	"time"

	"gymbody/internal/models"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// maxHistory bounds the turns replayed to the model per conversation.
const maxHistory = 40

// SessionKey identifies one conversation: a user talking to one persona of one gym.
type SessionKey struct {
	UserID string
	GymID  string
	Mode   models.ChatMode
}

// Session is one conversation. Turns are serialised so history stays ordered.
type Session struct {
	Key         SessionKey
	Instruction string
	CreatedAt   time.Time

	mu      sync.Mutex
	history []models.ChatMessage
}

// History returns a copy of the stored turns, oldest first.
func (s *Session) History() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.history...)
}

func (s *Session) append(role, text string, at time.Time) models.ChatMessage {
	msg := models.ChatMessage{ID: uuid.NewString(), Role: role, Text: text, Timestamp: at}
	s.history = append(s.history, msg)
	if len(s.history) > maxHistory {
		s.history = append([]models.ChatMessage(nil), s.history[len(s.history)-maxHistory:]...)
	}
	return msg
}

// Registry owns the live conversations. Get creates a session on first use.
type Registry struct {
	mu       sync.Mutex
	sessions map[SessionKey]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionKey]*Session), now: time.Now}
}

func (r *Registry) Get(key SessionKey, instruction string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := &Session{Key: key, Instruction: instruction, CreatedAt: r.now()}
	r.sessions[key] = s
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(key SessionKey) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Reset drops a conversation; the next Get starts fresh.
func (r *Registry) Reset(key SessionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
