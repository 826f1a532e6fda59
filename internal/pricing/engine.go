// Package pricing computes order totals against a versioned price catalog.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"aquaflow/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder         = errors.New("order is empty")
	ErrUnknownGallonType  = errors.New("unknown gallon type")
	ErrNegativeQuantity   = errors.New("negative quantity")
	ErrNegativeGallonCost = errors.New("negative price")
)

// Catalog is an immutable snapshot of prices. Version increases every time
// the settings it was built from change.
type Catalog struct {
	Version           int64
	Prices            map[string]decimal.Decimal
	NewContainerPrice decimal.Decimal
}

func NewCatalog(s models.Settings, version int64) Catalog {
	prices := make(map[string]decimal.Decimal, len(s.GallonTypes))
	for _, g := range s.GallonTypes {
		prices[g.Name] = g.Price
	}
	return Catalog{Version: version, Prices: prices, NewContainerPrice: s.NewGallonPrice}
}

// Line is the priced breakdown of one cart item.
type Line struct {
	Item      models.CartItem
	UnitPrice decimal.Decimal
	Refill    decimal.Decimal
	New       decimal.Decimal
	Known     bool
}

type Quote struct {
	Total          decimal.Decimal
	Lines          []Line
	Unknown        []string
	CatalogVersion int64
}

// Quote prices the cart. Unknown gallon types add nothing for refills and are
// listed in Unknown; their new containers are still charged.
func (c Catalog) Quote(cart []models.CartItem) Quote {
	q := Quote{Total: decimal.Zero, CatalogVersion: c.Version}
	for _, item := range cart {
		unit, known := c.Prices[item.Name]
		line := Line{
			Item:      item,
			UnitPrice: unit,
			Refill:    decimal.Zero,
			New:       c.NewContainerPrice.Mul(decimal.NewFromInt(int64(item.New))),
			Known:     known,
		}
		if known {
			line.Refill = unit.Mul(decimal.NewFromInt(int64(item.Refill)))
		} else {
			q.Unknown = append(q.Unknown, item.Name)
		}
		q.Total = q.Total.Add(line.Refill).Add(line.New)
		q.Lines = append(q.Lines, line)
	}
	return q
}

// Normalize drops zero-quantity lines and rejects negative quantities.
func Normalize(cart []models.CartItem) ([]models.CartItem, error) {
	out := make([]models.CartItem, 0, len(cart))
	for _, item := range cart {
		if item.Refill < 0 || item.New < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNegativeQuantity, item.Name)
		}
		if item.Empty() {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Price validates the cart for booking creation and returns the total to
// snapshot. The cart must already be normalized.
func (c Catalog) Price(cart []models.CartItem) (decimal.Decimal, error) {
	if len(cart) == 0 {
		return decimal.Zero, ErrEmptyOrder
	}
	q := c.Quote(cart)
	if len(q.Unknown) > 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownGallonType, strings.Join(q.Unknown, ", "))
	}
	return q.Total, nil
}

// ValidatePrice rejects negative catalog prices.
func ValidatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeGallonCost, p)
	}
	return nil
}
