package syncer

import "errors"

var (
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateUser        = errors.New("mobile number or email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidResetCode     = errors.New("invalid reset code")
	ErrUnknownTimeSlot      = errors.New("unknown time slot")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateEntry       = errors.New("already exists")
	// ErrUnconfirmed wraps a store failure. The local change stays applied.
	ErrUnconfirmed = errors.New("change applied locally but not confirmed by the store")
)
