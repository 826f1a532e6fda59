package models

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Settings keys as stored one per row.
const (
	SettingGallonTypes    = "gallonTypes"
	SettingTimeSlots      = "timeSlots"
	SettingGallonPrice    = "gallonPrice"
	SettingNewGallonPrice = "newGallonPrice"
)

// Settings is the admin-editable service configuration.
type Settings struct {
	GallonTypes    []GallonType    `json:"gallonTypes"`
	TimeSlots      []string        `json:"timeSlots"`
	GallonPrice    decimal.Decimal `json:"gallonPrice"`
	NewGallonPrice decimal.Decimal `json:"newGallonPrice"`
}

// DefaultSettings is the catalog a fresh store is seeded with.
func DefaultSettings() Settings {
	price := decimal.NewFromInt(DefaultGallonPrice)
	return Settings{
		GallonTypes: []GallonType{
			{Name: "Slim", Price: price},
			{Name: "Round", Price: price},
			{Name: "5G", Price: price},
		},
		TimeSlots:      []string{"9am–12pm", "1pm–5pm"},
		GallonPrice:    price,
		NewGallonPrice: decimal.NewFromInt(DefaultNewGallonPrice),
	}
}

// SettingsFromMap decodes a key/value settings document. Missing prices fall
// back to the defaults, missing lists to empty ones.
func SettingsFromMap(values map[string]any) (Settings, error) {
	s := Settings{
		GallonTypes:    []GallonType{},
		TimeSlots:      []string{},
		GallonPrice:    decimal.NewFromInt(DefaultGallonPrice),
		NewGallonPrice: decimal.NewFromInt(DefaultNewGallonPrice),
	}

	targets := map[string]any{
		SettingGallonTypes:    &s.GallonTypes,
		SettingTimeSlots:      &s.TimeSlots,
		SettingGallonPrice:    &s.GallonPrice,
		SettingNewGallonPrice: &s.NewGallonPrice,
	}
	for key, target := range targets {
		v, ok := values[key]
		if !ok || v == nil {
			continue
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return Settings{}, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return Settings{}, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if s.GallonTypes == nil {
		s.GallonTypes = []GallonType{}
	}
	if s.TimeSlots == nil {
		s.TimeSlots = []string{}
	}

	for i := range s.GallonTypes {
		if s.GallonTypes[i].unpriced {
			s.GallonTypes[i].Price = s.GallonPrice
			s.GallonTypes[i].unpriced = false
		}
	}
	return s, nil
}

// Map encodes the named keys (all of them when none are given) as a merge payload.
func (s Settings) Map(keys ...string) map[string]any {
	all := map[string]any{
		SettingGallonTypes:    s.GallonTypes,
		SettingTimeSlots:      s.TimeSlots,
		SettingGallonPrice:    json.Number(s.GallonPrice.String()),
		SettingNewGallonPrice: json.Number(s.NewGallonPrice.String()),
	}
	if len(keys) == 0 {
		return all
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (s Settings) GallonType(name string) (GallonType, bool) {
	for _, g := range s.GallonTypes {
		if g.Name == name {
			return g, true
		}
	}
	return GallonType{}, false
}

func (s Settings) HasTimeSlot(slot string) bool {
	for _, ts := range s.TimeSlots {
		if ts == slot {
			return true
		}
	}
	return false
}

// Clone returns a copy with independent slices.
func (s Settings) Clone() Settings {
	out := s
	out.GallonTypes = append([]GallonType{}, s.GallonTypes...)
	out.TimeSlots = append([]string{}, s.TimeSlots...)
	return out
}

// NewID builds a record identifier: prefix, base36 milliseconds, then a
// random base36 suffix so ids minted in the same millisecond differ.
func NewID(prefix string, now time.Time) string {
	suffix := strconv.FormatInt(rand.Int64N(36*36*36), 36)
	for len(suffix) < 3 {
		suffix = "0" + suffix
	}
	return prefix + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)+suffix)
}
