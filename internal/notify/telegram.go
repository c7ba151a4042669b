// Package notify delivers staff alerts and member reminders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var ErrNoChat = errors.New("no telegram chat for recipient")

// NewBot connects to the Bot API. Every request is bounded by timeout.
func NewBot(token string, debug bool, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// TelegramNotifier sends plain text messages through a bot.
type TelegramNotifier struct {
	sender      domain.TelegramSender
	staffChatID int64
	logger      *zerolog.Logger
}

func NewTelegramNotifier(sender domain.TelegramSender, staffChatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, staffChatID: staffChatID, logger: logger}
}

func (n *TelegramNotifier) NotifyStaff(ctx context.Context, text string) error {
	if n.staffChatID == 0 {
		n.logger.Debug().Str("text", text).Msg("Staff chat not configured, alert dropped")
		return nil
	}
	return n.NotifyChat(ctx, n.staffChatID, text)
}

func (n *TelegramNotifier) NotifyChat(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return ErrNoChat
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// LogNotifier writes notifications to the log when no messenger is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyStaff(ctx context.Context, text string) error {
	n.logger.Info().Str("to", "staff").Msg(text)
	return nil
}

func (n *LogNotifier) NotifyChat(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return ErrNoChat
	}
	n.logger.Info().Int64("chat_id", chatID).Msg(text)
	return nil
}

// Subscribe wires booking and member events to n.
func Subscribe(bus *events.EventBus, n domain.Notifier) {
	ctx := context.Background()

	bookingAlert := func(format func(p events.BookingEventPayload) string) events.EventHandler {
		return func(e *events.Event) error {
			var p events.BookingEventPayload
			if err := e.Decode(&p); err != nil {
				return err
			}
			return n.NotifyStaff(ctx, format(p))
		}
	}

	bus.Subscribe(events.EventBookingCreated, bookingAlert(func(p events.BookingEventPayload) string {
		text := fmt.Sprintf("New booking: %s on %s at %s for %s (%d/%d)", p.SessionTitle, p.Date, p.Time, p.UserID, p.Booked, p.Capacity)
		if p.ActorID != "" && p.ActorID != p.UserID {
			text += fmt.Sprintf(", booked by %s", p.ActorID)
		}
		if p.Waitlisted {
			text += ", waitlisted"
		}
		return text
	}))
	bus.Subscribe(events.EventBookingCancelled, bookingAlert(func(p events.BookingEventPayload) string {
		return fmt.Sprintf("Cancelled: %s on %s at %s by %s (%d/%d)", p.SessionTitle, p.Date, p.Time, p.UserID, p.Booked, p.Capacity)
	}))
	bus.Subscribe(events.EventBookingConflict, bookingAlert(func(p events.BookingEventPayload) string {
		return fmt.Sprintf("Double booking pending for %s on %s: %s at %s, already holds %s",
			p.UserID, p.Date, p.SessionTitle, p.Time, strings.Join(p.Conflicts, ", "))
	}))

	bus.Subscribe(events.EventCheckInDenied, func(e *events.Event) error {
		var p events.MemberEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.NotifyStaff(ctx, fmt.Sprintf("Check-in denied for %s: membership %s", p.MemberName, p.Status))
	})

	bus.Subscribe(events.EventPaymentConfirmed, func(e *events.Event) error {
		var p events.MemberEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.NotifyStaff(ctx, fmt.Sprintf("Cash payment recorded for %s by %s", p.MemberName, p.ActorID))
	})

	bus.Subscribe(events.EventIncidentLogged, func(e *events.Event) error {
		var p events.IncidentEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.NotifyStaff(ctx, fmt.Sprintf("New %s incident: %s (logged by %s)", strings.ToLower(p.Category), p.Title, p.StaffName))
	})

	bus.Subscribe(events.EventSubstitute, func(e *events.Event) error {
		var p events.TrainerEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return n.NotifyStaff(ctx, fmt.Sprintf("%s takes over %s on %s at %s from %s, %d booked",
			p.Substitute, p.SessionTitle, p.Date, p.Time, p.Trainer, len(p.Holders)))
	})
}

// PaymentReminder is the text sent to a member with an open balance.
func PaymentReminder(name string, balance float64, dueDate string) string {
	text := fmt.Sprintf("Hi %s, a balance of €%.2f is open on your membership", name, balance)
	if dueDate != "" {
		text += fmt.Sprintf(" (due %s)", dueDate)
	}
	return text + ". You can settle it at the front desk."
}
