// Package lifecycle holds the booking status transition table.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"aquaflow/internal/models"
)

// ErrInvalidTransition is returned for any (from, to, role) triple outside the table.
var ErrInvalidTransition = errors.New("invalid transition")

// guard restricts a transition by the booking's delivery option.
type guard int

const (
	always guard = iota
	deliveryOnly
	pickupOnly
)

func (g guard) allows(b models.Booking) bool {
	switch g {
	case deliveryOnly:
		return b.DeliveryOption
	case pickupOnly:
		return !b.DeliveryOption
	default:
		return true
	}
}

type key struct {
	from models.Status
	to   models.Status
	role models.Role
}

type row struct {
	key
	guard guard
}

var staff = []models.Role{models.RoleAdmin, models.RoleRider}

// rows is the whole policy, in pipeline order. Customers appear nowhere.
var rows = expand([]struct {
	from, to models.Status
	guard    guard
}{
	{models.StatusPending, models.StatusAccepted, always},
	{models.StatusPending, models.StatusCancelled, always},
	{models.StatusAccepted, models.StatusPickedUp, always},
	{models.StatusPickedUp, models.StatusRefilled, always},
	{models.StatusRefilled, models.StatusOutForDelivery, deliveryOnly},
	{models.StatusRefilled, models.StatusCompleted, pickupOnly},
	{models.StatusOutForDelivery, models.StatusCompleted, always},
})

var table = index(rows)

func expand(defs []struct {
	from, to models.Status
	guard    guard
}) []row {
	out := make([]row, 0, len(defs)*len(staff))
	for _, d := range defs {
		for _, role := range staff {
			out = append(out, row{key: key{from: d.from, to: d.to, role: role}, guard: d.guard})
		}
	}
	return out
}

func index(rs []row) map[key]guard {
	m := make(map[key]guard, len(rs))
	for _, r := range rs {
		m[r.key] = r.guard
	}
	return m
}

// Transition validates moving b to status to on behalf of role and returns the next status.
func Transition(b models.Booking, to models.Status, role models.Role) (models.Status, error) {
	g, ok := table[key{from: b.Status, to: to, role: role}]
	if !ok || !g.allows(b) {
		return b.Status, fmt.Errorf("%w: %q -> %q by %s", ErrInvalidTransition, b.Status, to, role)
	}
	return to, nil
}

// Apply performs a validated transition in place. Entering Completed stamps
// CompletedAt with now; on error b is left unchanged.
func Apply(b *models.Booking, to models.Status, role models.Role, now time.Time) error {
	next, err := Transition(*b, to, role)
	if err != nil {
		return err
	}
	b.Status = next
	if next == models.StatusCompleted {
		ts := now
		b.CompletedAt = &ts
	}
	return nil
}

// Available lists the statuses role may move b to, in pipeline order.
func Available(b models.Booking, role models.Role) []models.Status {
	var out []models.Status
	for _, r := range rows {
		if r.from == b.Status && r.role == role && r.guard.allows(b) {
			out = append(out, r.to)
		}
	}
	return out
}

// IsTerminal reports whether s allows no further transitions.
func IsTerminal(s models.Status) bool {
	return s.Terminal()
}
