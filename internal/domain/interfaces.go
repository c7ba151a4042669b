package domain

import (
	"context"
	"time"

	"gymbody/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ScheduleRepository stores sessions and the (user, session) booking relation.
// AddBooking increments the session counter by exactly one; RemoveBooking decrements
// it by one and never below zero.
type ScheduleRepository interface {
	GetSessions(ctx context.Context, gymID string) ([]*models.ClassSession, error)
	GetSession(ctx context.Context, id string) (*models.ClassSession, error)
	AddSessions(ctx context.Context, sessions []*models.ClassSession) error
	DeleteSessionsBefore(ctx context.Context, gymID, date string) (int, error)
	LastSessionID(ctx context.Context) (int64, error)

	AddBooking(ctx context.Context, booking *models.Booking) (*models.ClassSession, error)
	RemoveBooking(ctx context.Context, userID, sessionID string) (*models.ClassSession, error)
	HasBooking(ctx context.Context, userID, sessionID string) (bool, error)
	GetUserBookings(ctx context.Context, userID string) ([]*models.Booking, error)
	GetSessionBookings(ctx context.Context, sessionID string) ([]*models.Booking, error)
}

type MemberRepository interface {
	GetMembers(ctx context.Context, gymID string) ([]*models.Member, error)
	GetMember(ctx context.Context, id string) (*models.Member, error)
	UpsertMember(ctx context.Context, member *models.Member) error
	RecordVisit(ctx context.Context, memberID string, at time.Time) error
	GetPayment(ctx context.Context, memberID string) (*models.PaymentRecord, error)
	GetPayments(ctx context.Context, gymID string) ([]*models.MemberPayment, error)
	UpsertPayment(ctx context.Context, rec *models.PaymentRecord) error
}

type WellnessRepository interface {
	GetPreferences(ctx context.Context, userID string) (map[string]string, error)
	SetPreference(ctx context.Context, userID, key, value string) error
	AddMeal(ctx context.Context, meal *models.MealLog) error
	GetMeals(ctx context.Context, userID string, from, to time.Time) ([]*models.MealLog, error)
}

type IncidentRepository interface {
	CreateIncident(ctx context.Context, inc *models.Incident) error
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	GetIncidents(ctx context.Context, gymID string) ([]*models.Incident, error)
	AddIncidentNote(ctx context.Context, incidentID string, note models.IncidentNote) error
	SetIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus) error
}

// TrainerRepository keeps per-day trainer attendance and session instructor changes.
type TrainerRepository interface {
	GetTrainerStatuses(ctx context.Context, gymID, date string) (map[string]models.TrainerStatus, error)
	SetTrainerStatus(ctx context.Context, gymID, date, name string, status models.TrainerStatus, actorID string) error
	SetInstructor(ctx context.Context, sessionID, name string) (*models.ClassSession, error)
}

type AnalyticsRepository interface {
	BookingsPerDay(ctx context.Context, gymID, from, to string) ([]models.DayCount, error)
	VisitsPerDay(ctx context.Context, gymID, from, to string) ([]models.DayCount, error)
	BookingsByCategory(ctx context.Context, gymID, from, to string) (map[models.Category]int, error)
}

type SyncQueue interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type StateRepository interface {
	GetState(ctx context.Context, userID string) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID string) error
	CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ChatModel is the generative-language backend. History holds prior turns of the
// same conversation, oldest first.
type ChatModel interface {
	Generate(ctx context.Context, systemInstruction string, history []models.ChatMessage, text string) (string, error)
}

type Notifier interface {
	NotifyStaff(ctx context.Context, text string) error
	NotifyChat(ctx context.Context, chatID int64, text string) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	AppendBookingRow(ctx context.Context, row []interface{}) error
}

type SyncWorker interface {
	EnqueueBooking(ctx context.Context, taskType string, booking *models.Booking, session *models.ClassSession) error
}
