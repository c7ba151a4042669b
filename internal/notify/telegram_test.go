package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gymbody/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func textTo(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

func TestTelegramNotifier(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	t.Run("NotifyStaff", func(t *testing.T) {
		sender := new(mockTelegramSender)
		sender.On("Send", textTo(-100, "hello")).Return(tgbotapi.Message{}, nil).Once()

		n := NewTelegramNotifier(sender, -100, &logger)
		require.NoError(t, n.NotifyStaff(ctx, "hello"))
		sender.AssertExpectations(t)
	})

	t.Run("StaffChatUnset", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, 0, &logger)
		require.NoError(t, n.NotifyStaff(ctx, "dropped"))
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("NoChat", func(t *testing.T) {
		n := NewTelegramNotifier(new(mockTelegramSender), 0, &logger)
		assert.ErrorIs(t, n.NotifyChat(ctx, 0, "x"), ErrNoChat)
	})

	t.Run("SendError", func(t *testing.T) {
		sender := new(mockTelegramSender)
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("blocked")).Once()
		n := NewTelegramNotifier(sender, 0, &logger)
		assert.Error(t, n.NotifyChat(ctx, 42, "x"))
	})
}

func TestSubscribe(t *testing.T) {
	logger := zerolog.Nop()
	sender := new(mockTelegramSender)
	bus := events.NewEventBus()
	Subscribe(bus, NewTelegramNotifier(sender, -100, &logger))

	sender.On("Send", textTo(-100, "New booking: Open Gym Access on 2024-06-10 at 9:00 AM for u_og_1 (2/2), booked by u_admin_1")).
		Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
		UserID: "u_og_1", ActorID: "u_admin_1", SessionTitle: "Open Gym Access",
		Date: "2024-06-10", Time: "9:00 AM", Booked: 2, Capacity: 2, At: time.Now(),
	}))

	sender.On("Send", textTo(-100, "already holds 12, 13")).Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventBookingConflict, events.BookingEventPayload{
		UserID: "u_og_1", Date: "2024-06-10", Conflicts: []string{"12", "13"},
	}))

	sender.On("Send", textTo(-100, "Check-in denied for Andreas P.: membership Frozen")).Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventCheckInDenied, events.MemberEventPayload{
		MemberName: "Andreas P.", Status: "Frozen",
	}))

	sender.On("Send", textTo(-100, "New equipment incident: Broken Treadmill #4 (logged by Gym Admin)")).Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventIncidentLogged, events.IncidentEventPayload{
		Category: "Equipment", Title: "Broken Treadmill #4", StaffName: "Gym Admin",
	}))

	sender.On("Send", textTo(-100, "Coach Sarah takes over Cardio Blast on 2024-06-10 at 7:00 AM from Elite Mike, 2 booked")).
		Return(tgbotapi.Message{}, nil).Once()
	require.NoError(t, bus.PublishJSON(events.EventSubstitute, events.TrainerEventPayload{
		Trainer: "Elite Mike", Substitute: "Coach Sarah", SessionTitle: "Cardio Blast",
		Date: "2024-06-10", Time: "7:00 AM", Holders: []string{"m1", "m2"},
	}))

	sender.AssertExpectations(t)
}

func TestPaymentReminder(t *testing.T) {
	assert.Equal(t,
		"Hi Elena, a balance of €45.00 is open on your membership (due 2024-06-01). You can settle it at the front desk.",
		PaymentReminder("Elena", 45, "2024-06-01"))
	assert.Equal(t,
		"Hi Elena, a balance of €5.50 is open on your membership. You can settle it at the front desk.",
		PaymentReminder("Elena", 5.5, ""))
}

func TestLogNotifier(t *testing.T) {
	logger := zerolog.Nop()
	n := NewLogNotifier(&logger)
	assert.NoError(t, n.NotifyStaff(context.Background(), "x"))
	assert.NoError(t, n.NotifyChat(context.Background(), 1, "x"))
	assert.ErrorIs(t, n.NotifyChat(context.Background(), 0, "x"), ErrNoChat)
}
