package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
	EventUserRegistered       = "user_registered"
	EventUserRoleChanged      = "user_role_changed"
	EventSettingsChanged      = "settings_changed"
)

// Types lists every event the mirror emits.
var Types = []string{
	EventBookingCreated,
	EventBookingStatusChanged,
	EventUserRegistered,
	EventUserRoleChanged,
	EventSettingsChanged,
}

// BookingEventPayload describes the booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID     string          `json:"booking_id"`
	UserID        string          `json:"user_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Status        string          `json:"status"`
	PreviousState string          `json:"previous_status,omitempty"`
	PickupDate    string          `json:"pickup_date,omitempty"`
	TimeSlot      string          `json:"time_slot,omitempty"`
	Delivery      bool            `json:"delivery"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	ChangedBy     string          `json:"changed_by,omitempty"`
}

type UserEventPayload struct {
	UserID       string `json:"user_id"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	PreviousRole string `json:"previous_role,omitempty"`
	ChangedBy    string `json:"changed_by,omitempty"`
}

type SettingsEventPayload struct {
	Keys      []string `json:"keys"`
	Version   int64    `json:"catalog_version"`
	ChangedBy string   `json:"changed_by,omitempty"`
}

// Event is a domain event with a JSON payload.
type Event struct {
	ID        string          `json:"event_id"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"occurred_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	all         []EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish notifies subscribers of the event type. Handler errors are ignored.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	ev, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&ev)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
