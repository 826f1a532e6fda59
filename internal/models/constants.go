package models

// Status is the booking lifecycle state as stored on the wire.
type Status string

const (
	StatusPending        Status = "Pending"
	StatusAccepted       Status = "Accepted"
	StatusPickedUp       Status = "Picked Up"
	StatusRefilled       Status = "Refilled"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusCompleted      Status = "Completed"
	StatusCancelled      Status = "Cancelled"
)

// Statuses lists every status in pipeline order.
var Statuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusPickedUp,
	StatusRefilled,
	StatusOutForDelivery,
	StatusCompleted,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active is true for bookings a rider still has to work on.
func (s Status) Active() bool {
	switch s {
	case StatusAccepted, StatusPickedUp, StatusRefilled, StatusOutForDelivery:
		return true
	}
	return false
}

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
	RoleRider    Role = "RIDER"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin || r == RoleRider
}

// Staff roles may advance bookings.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleRider
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "Cash on Delivery"
	PaymentCash           PaymentMethod = "Cash"
	PaymentGCash          PaymentMethod = "GCash"
)

var PaymentMethods = []PaymentMethod{PaymentCashOnDelivery, PaymentCash, PaymentGCash}

func (p PaymentMethod) Valid() bool {
	for _, m := range PaymentMethods {
		if m == p {
			return true
		}
	}
	return false
}

const (
	// DefaultGallonPrice is the refill price used when settings carry none.
	DefaultGallonPrice = 25
	// DefaultNewGallonPrice is the new container price used when settings carry none.
	DefaultNewGallonPrice = 150

	// MultipleGallonTypes marks a booking whose cart spans several types.
	MultipleGallonTypes = "Multiple"

	// PickupDateLayout is the canonical pickup date format.
	PickupDateLayout = "2006-01-02"

	// ResetCodeDigits is the length of a password reset code.
	ResetCodeDigits = 6
)
