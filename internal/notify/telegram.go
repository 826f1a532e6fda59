package notify

import (
	"context"
	"fmt"
	"strings"

	"aquaflow/internal/domain"
	"aquaflow/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier posts new-booking alerts to a staff chat. Reset codes are
// personal and go through the fallback notifier.
type TelegramNotifier struct {
	bot      domain.TelegramSender
	chatID   int64
	fallback Notifier
	logger   zerolog.Logger
}

// NewTelegramBot connects to the Bot API with token.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64, fallback Notifier, logger *zerolog.Logger) *TelegramNotifier {
	if fallback == nil {
		fallback = NewLogNotifier(logger)
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &TelegramNotifier{
		bot:      bot,
		chatID:   chatID,
		fallback: fallback,
		logger:   l.With().Str("component", "telegram_notify").Logger(),
	}
}

func (n *TelegramNotifier) SendResetCode(ctx context.Context, user models.User, code string) error {
	return n.fallback.SendResetCode(ctx, user, code)
}

func (n *TelegramNotifier) NotifyBooking(_ context.Context, booking models.Booking, customer models.User) error {
	msg := tgbotapi.NewMessage(n.chatID, bookingText(booking, customer))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("send booking alert")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func bookingText(b models.Booking, customer models.User) string {
	var sb strings.Builder
	sb.WriteString("*New booking* `" + b.ID + "`\n")
	sb.WriteString(fmt.Sprintf("Customer: %s (%s)\n", escape(customer.FullName), escape(customer.Mobile)))
	for _, item := range b.Items {
		sb.WriteString(fmt.Sprintf("• %s: %d refill, %d new\n", escape(item.Name), item.Refill, item.New))
	}
	sb.WriteString(fmt.Sprintf("Pickup: %s %s\n", escape(b.PickupDate), escape(b.TimeSlot)))
	sb.WriteString("Address: " + escape(b.PickupAddress) + "\n")
	if b.DeliveryOption {
		sb.WriteString("Delivery: yes\n")
	}
	sb.WriteString(fmt.Sprintf("Total: ₱%s (%s)", b.Price.StringFixed(2), escape(string(b.PaymentMethod))))
	return sb.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
