package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"aquaflow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBot struct {
	mock.Mock
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type recordingNotifier struct {
	codes []string
}

func (r *recordingNotifier) SendResetCode(_ context.Context, _ models.User, code string) error {
	r.codes = append(r.codes, code)
	return nil
}

func (r *recordingNotifier) NotifyBooking(context.Context, models.Booking, models.User) error {
	return nil
}

func sampleBooking() (models.Booking, models.User) {
	b := models.Booking{
		ID:             "B1",
		PickupDate:     "2025-03-01",
		TimeSlot:       "9am–12pm",
		PickupAddress:  "12 Rizal St",
		DeliveryOption: true,
		Price:          decimal.NewFromInt(200),
		PaymentMethod:  models.PaymentGCash,
		Items:          []models.CartItem{{Name: "Slim", Refill: 2, New: 1}},
	}
	return b, models.User{ID: "U1", FullName: "Ana_Cruz", Mobile: "0917"}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := NewLogNotifier(&logger)

	require.NoError(t, n.SendResetCode(context.Background(), models.User{ID: "U1", Email: "a@x.ph"}, "123456"))
	assert.Contains(t, buf.String(), `"code":"123456"`)

	b, u := sampleBooking()
	require.NoError(t, n.NotifyBooking(context.Background(), b, u))
	assert.Contains(t, buf.String(), `"price":"200.00"`)
}

func TestTelegramNotifier_NotifyBooking(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == -100 &&
			msg.ParseMode == tgbotapi.ModeMarkdown &&
			strings.Contains(msg.Text, "Ana\\_Cruz") &&
			strings.Contains(msg.Text, "₱200.00")
	})).Return(nil).Once()

	n := NewTelegramNotifier(bot, -100, nil, nil)
	b, u := sampleBooking()
	require.NoError(t, n.NotifyBooking(context.Background(), b, u))
	bot.AssertExpectations(t)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", mock.Anything).Return(errors.New("chat not found"))

	n := NewTelegramNotifier(bot, 1, nil, nil)
	b, u := sampleBooking()
	err := n.NotifyBooking(context.Background(), b, u)
	assert.ErrorContains(t, err, "chat not found")
}

func TestTelegramNotifier_ResetCodeUsesFallback(t *testing.T) {
	bot := &mockBot{}
	fallback := &recordingNotifier{}
	n := NewTelegramNotifier(bot, 1, fallback, nil)

	require.NoError(t, n.SendResetCode(context.Background(), models.User{ID: "U1"}, "654321"))
	assert.Equal(t, []string{"654321"}, fallback.codes)
	bot.AssertNotCalled(t, "Send", mock.Anything)
}
