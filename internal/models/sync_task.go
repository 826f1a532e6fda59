package models

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the record type of a write.
type Kind string

const (
	KindUser     Kind = "user"
	KindBooking  Kind = "booking"
	KindSettings Kind = "settings"
)

// ErrUnknownKind is returned for any data type outside user, booking and settings.
var ErrUnknownKind = errors.New("invalid dataType")

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindUser, KindBooking, KindSettings:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

const (
	SyncPending   = "pending"
	SyncConfirmed = "confirmed"
	SyncFailed    = "failed"
)

// SyncTask is a journal entry for one persistence attempt.
type SyncTask struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	RecordID  string    `json:"record_id"`
	Payload   string    `json:"payload"`
	Status    string    `json:"status"`
	LastError *string   `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
