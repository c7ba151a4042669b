package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingConflict  = "booking_conflict"
	EventBookingDeclined  = "booking_declined"
	EventMemberCheckedIn  = "member_checked_in"
	EventCheckInDenied    = "member_check_in_denied"
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentReminder  = "payment_reminder"
	EventIncidentLogged   = "incident_logged"
	EventTrainerStatus    = "trainer_status_changed"
	EventSubstitute       = "trainer_substitute_assigned"
)

// BookingEventPayload is the booking snapshot sent to subscribers.
type BookingEventPayload struct {
	GymID        string    `json:"gym_id"`
	UserID       string    `json:"user_id"`
	ActorID      string    `json:"actor_id,omitempty"`
	SessionID    string    `json:"session_id"`
	SessionTitle string    `json:"session_title"`
	Instructor   string    `json:"instructor,omitempty"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Booked       int       `json:"booked"`
	Capacity     int       `json:"capacity"`
	Waitlisted   bool      `json:"waitlisted,omitempty"`
	Conflicts    []string  `json:"conflicts,omitempty"`
	At           time.Time `json:"at"`
}

// MemberEventPayload covers check-ins and payment actions.
type MemberEventPayload struct {
	GymID      string    `json:"gym_id"`
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	Status     string    `json:"status,omitempty"`
	Balance    float64   `json:"balance,omitempty"`
	ChatID     int64     `json:"chat_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	At         time.Time `json:"at"`
}

// IncidentEventPayload announces a new audit log entry.
type IncidentEventPayload struct {
	GymID      string    `json:"gym_id"`
	IncidentID string    `json:"incident_id"`
	Category   string    `json:"category"`
	Title      string    `json:"title"`
	StaffName  string    `json:"staff_name"`
	At         time.Time `json:"at"`
}

// TrainerEventPayload covers status changes and substitutions. For a substitution
// Trainer is the replaced instructor and Substitute the one taking over.
type TrainerEventPayload struct {
	GymID        string    `json:"gym_id"`
	Trainer      string    `json:"trainer"`
	Status       string    `json:"status,omitempty"`
	Substitute   string    `json:"substitute,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	SessionTitle string    `json:"session_title,omitempty"`
	Date         string    `json:"date"`
	Time         string    `json:"time,omitempty"`
	Holders      []string  `json:"holders,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	At           time.Time `json:"at"`
}

// Event is a published domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

type EventHandler func(event *Event) error

// ErrorHandler receives handler failures. Publish never returns them.
type ErrorHandler func(event *Event, err error)

// EventBus is an in-process pub/sub. Handlers run synchronously in subscription order.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs the handler-failure callback.
func (b *EventBus) OnError(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = h
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes it. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
