package main

import (
	"fmt"
	"strconv"
	"strings"

	"aquaflow/internal/models"

	"github.com/shopspring/decimal"
)

// parseItems reads a cart written as TYPE:REFILL[:NEW] entries separated by
// commas. A missing NEW count is zero.
func parseItems(raw string) ([]models.CartItem, error) {
	var cart []models.CartItem
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("item %q: want TYPE:REFILL[:NEW]", entry)
		}
		item := models.CartItem{Name: strings.TrimSpace(parts[0])}
		if item.Name == "" {
			return nil, fmt.Errorf("item %q: missing gallon type", entry)
		}
		var err error
		if item.Refill, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return nil, fmt.Errorf("item %q: refill count: %w", entry, err)
		}
		if len(parts) == 3 {
			if item.New, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
				return nil, fmt.Errorf("item %q: new count: %w", entry, err)
			}
		}
		cart = append(cart, item)
	}
	return cart, nil
}

// parseStatus matches a status name ignoring case and surrounding space.
func parseStatus(raw string) (models.Status, error) {
	raw = strings.TrimSpace(raw)
	for _, s := range models.Statuses {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

func money(d decimal.Decimal) string {
	return "₱" + d.StringFixed(2)
}
