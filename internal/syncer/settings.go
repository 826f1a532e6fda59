package syncer

import (
	"context"
	"fmt"
	"strings"

	"aquaflow/internal/events"
	"aquaflow/internal/models"
	"aquaflow/internal/pricing"

	"github.com/shopspring/decimal"
)

// AddGallonType adds a gallon type to the catalog.
func (m *Mirror) AddGallonType(ctx context.Context, actor models.User, name string, price decimal.Decimal) (*Pending, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: gallon type name is required", ErrInvalidInput)
	}
	if err := pricing.ValidatePrice(price); err != nil {
		return nil, err
	}
	return m.editSettings(ctx, actor, models.SettingGallonTypes, func(s *models.Settings) error {
		if _, ok := s.GallonType(name); ok {
			return fmt.Errorf("%w: gallon type %q", ErrDuplicateEntry, name)
		}
		s.GallonTypes = append(s.GallonTypes, models.GallonType{Name: name, Price: price})
		return nil
	})
}

// RemoveGallonType drops a gallon type. Existing bookings keep their price.
func (m *Mirror) RemoveGallonType(ctx context.Context, actor models.User, name string) (*Pending, error) {
	return m.editSettings(ctx, actor, models.SettingGallonTypes, func(s *models.Settings) error {
		for i, g := range s.GallonTypes {
			if g.Name == name {
				s.GallonTypes = append(s.GallonTypes[:i:i], s.GallonTypes[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: gallon type %q", ErrNotFound, name)
	})
}

func (m *Mirror) AddTimeSlot(ctx context.Context, actor models.User, slot string) (*Pending, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return nil, fmt.Errorf("%w: time slot is required", ErrInvalidInput)
	}
	return m.editSettings(ctx, actor, models.SettingTimeSlots, func(s *models.Settings) error {
		if s.HasTimeSlot(slot) {
			return fmt.Errorf("%w: time slot %q", ErrDuplicateEntry, slot)
		}
		s.TimeSlots = append(s.TimeSlots, slot)
		return nil
	})
}

// RemoveTimeSlot drops a slot from the active set. Bookings already made for
// it keep it.
func (m *Mirror) RemoveTimeSlot(ctx context.Context, actor models.User, slot string) (*Pending, error) {
	return m.editSettings(ctx, actor, models.SettingTimeSlots, func(s *models.Settings) error {
		for i, ts := range s.TimeSlots {
			if ts == slot {
				s.TimeSlots = append(s.TimeSlots[:i:i], s.TimeSlots[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: time slot %q", ErrNotFound, slot)
	})
}

func (m *Mirror) SetGallonPrice(ctx context.Context, actor models.User, price decimal.Decimal) (*Pending, error) {
	if err := pricing.ValidatePrice(price); err != nil {
		return nil, err
	}
	return m.editSettings(ctx, actor, models.SettingGallonPrice, func(s *models.Settings) error {
		s.GallonPrice = price
		return nil
	})
}

func (m *Mirror) SetNewGallonPrice(ctx context.Context, actor models.User, price decimal.Decimal) (*Pending, error) {
	if err := pricing.ValidatePrice(price); err != nil {
		return nil, err
	}
	return m.editSettings(ctx, actor, models.SettingNewGallonPrice, func(s *models.Settings) error {
		s.NewGallonPrice = price
		return nil
	})
}

// editSettings applies edit to a copy of the settings and sends a merge
// payload carrying only key.
func (m *Mirror) editSettings(_ context.Context, actor models.User, key string, edit func(*models.Settings) error) (*Pending, error) {
	m.mu.Lock()
	stored, err := m.actorLocked(actor)
	if err == nil && stored.Type != models.RoleAdmin {
		err = fmt.Errorf("%w: only admins edit settings", ErrForbidden)
	}
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	next := m.settings.Clone()
	if err := edit(&next); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.settings = next
	m.version++
	version := m.version
	p := m.persist(models.KindSettings, []string{key}, next.Map(key))
	m.mu.Unlock()

	m.publish(events.EventSettingsChanged, events.SettingsEventPayload{
		Keys:      []string{key},
		Version:   version,
		ChangedBy: actor.ID,
	})
	return p, nil
}
