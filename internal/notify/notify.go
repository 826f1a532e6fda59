// Package notify delivers out-of-band messages: password reset codes to users
// and new-booking alerts to staff.
package notify

import (
	"context"

	"aquaflow/internal/models"

	"github.com/rs/zerolog"
)

type Notifier interface {
	SendResetCode(ctx context.Context, user models.User, code string) error
	NotifyBooking(ctx context.Context, booking models.Booking, customer models.User) error
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &LogNotifier{logger: l.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) SendResetCode(_ context.Context, user models.User, code string) error {
	n.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Str("code", code).
		Msg("password reset code issued")
	return nil
}

func (n *LogNotifier) NotifyBooking(_ context.Context, booking models.Booking, customer models.User) error {
	n.logger.Info().
		Str("booking_id", booking.ID).
		Str("customer", customer.FullName).
		Str("slot", booking.TimeSlot).
		Str("price", booking.Price.StringFixed(2)).
		Msg("new booking")
	return nil
}
