package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aquaflow/internal/events"
	"aquaflow/internal/lifecycle"
	"aquaflow/internal/models"
	"aquaflow/internal/pricing"
)

type BookingInput struct {
	Items          []models.CartItem
	PickupAddress  string
	PickupDate     string
	TimeSlot       string
	Notes          string
	DeliveryOption bool
	PaymentMethod  models.PaymentMethod
}

// CreateBooking prices the cart against the current catalog and records a
// Pending booking for the customer. The price is frozen at this point.
func (m *Mirror) CreateBooking(ctx context.Context, actor models.User, in BookingInput) (models.Booking, *Pending, error) {
	if !in.PaymentMethod.Valid() {
		return models.Booking{}, nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, in.PaymentMethod)
	}
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	if in.PickupAddress == "" {
		return models.Booking{}, nil, fmt.Errorf("%w: pickup address is required", ErrInvalidInput)
	}
	if _, err := time.Parse(models.PickupDateLayout, in.PickupDate); err != nil {
		return models.Booking{}, nil, fmt.Errorf("%w: pickup date %q", ErrInvalidInput, in.PickupDate)
	}
	cart, err := pricing.Normalize(in.Items)
	if err != nil {
		return models.Booking{}, nil, err
	}

	m.mu.Lock()
	customer, err := m.actorLocked(actor)
	if err == nil && customer.Type != models.RoleCustomer {
		err = fmt.Errorf("%w: only customers place bookings", ErrForbidden)
	}
	if err != nil {
		m.mu.Unlock()
		return models.Booking{}, nil, err
	}
	if !m.settings.HasTimeSlot(in.TimeSlot) {
		m.mu.Unlock()
		return models.Booking{}, nil, fmt.Errorf("%w: %q", ErrUnknownTimeSlot, in.TimeSlot)
	}
	catalog := pricing.NewCatalog(m.settings, m.version)
	price, err := catalog.Price(cart)
	if err != nil {
		m.mu.Unlock()
		return models.Booking{}, nil, err
	}

	now := m.now()
	b := models.Booking{
		ID:             models.NewID("B", now),
		UserID:         actor.ID,
		PickupAddress:  in.PickupAddress,
		PickupDate:     in.PickupDate,
		TimeSlot:       in.TimeSlot,
		Notes:          strings.TrimSpace(in.Notes),
		Status:         models.StatusPending,
		DeliveryOption: in.DeliveryOption,
		CreatedAt:      now,
		Price:          price,
		PaymentMethod:  in.PaymentMethod,
		Items:          cart,
	}
	b.Summarize()
	m.bookings = append([]models.Booking{b}, m.bookings...)
	p := m.persist(models.KindBooking, []string{b.ID}, b)

	m.mu.Unlock()

	m.publish(events.EventBookingCreated, bookingPayload(b, "", customer.FullName, actor.ID))
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.notifier.NotifyBooking(context.WithoutCancel(ctx), b, customer); err != nil {
			m.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("booking alert not delivered")
		}
	}()

	m.logger.Info().
		Str("booking_id", b.ID).
		Str("price", price.String()).
		Int64("catalog_version", catalog.Version).
		Msg("booking created")
	return b.Clone(), p, nil
}

// ChangeStatus advances a booking through the lifecycle on behalf of actor.
func (m *Mirror) ChangeStatus(_ context.Context, actor models.User, bookingID string, to models.Status) (*Pending, error) {
	m.mu.Lock()
	stored, err := m.actorLocked(actor)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	i := m.bookingIndex(bookingID)
	if i < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}

	updated := m.bookings[i].Clone()
	previous := updated.Status
	if err := lifecycle.Apply(&updated, to, stored.Type, m.now()); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.bookings[i] = updated
	p := m.persist(models.KindBooking, []string{updated.ID}, updated)
	m.mu.Unlock()

	m.publish(events.EventBookingStatusChanged, bookingPayload(updated, previous, "", actor.ID))
	return p, nil
}

func bookingPayload(b models.Booking, previous models.Status, customer, changedBy string) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:     b.ID,
		UserID:        b.UserID,
		CustomerName:  customer,
		Status:        string(b.Status),
		PreviousState: string(previous),
		PickupDate:    b.PickupDate,
		TimeSlot:      b.TimeSlot,
		Delivery:      b.DeliveryOption,
		Price:         b.Price,
		PaymentMethod: string(b.PaymentMethod),
		ChangedBy:     changedBy,
	}
}
