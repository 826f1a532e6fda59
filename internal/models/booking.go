package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID                     string          `json:"id"`
	UserID                 string          `json:"userId"`
	GallonCount            int             `json:"gallonCount"`
	NewGallonPurchaseCount int             `json:"newGallonPurchaseCount"`
	GallonType             string          `json:"gallonType"`
	PickupAddress          string          `json:"pickupAddress"`
	PickupDate             string          `json:"pickupDate"`
	TimeSlot               string          `json:"timeSlot"`
	Notes                  string          `json:"notes"`
	Status                 Status          `json:"status"`
	DeliveryOption         bool            `json:"deliveryOption"`
	CreatedAt              time.Time       `json:"createdAt"`
	CompletedAt            *time.Time      `json:"completedAt"`
	Price                  decimal.Decimal `json:"price"`
	PaymentMethod          PaymentMethod   `json:"paymentMethod"`
	Items                  []CartItem      `json:"items"`
}

// Summarize fills the single-type summary columns from the cart.
func (b *Booking) Summarize() {
	b.GallonCount, b.NewGallonPurchaseCount = 0, 0
	names := make(map[string]struct{}, len(b.Items))
	for _, item := range b.Items {
		b.GallonCount += item.Refill
		b.NewGallonPurchaseCount += item.New
		names[item.Name] = struct{}{}
	}

	switch len(names) {
	case 0:
		b.GallonType = ""
	case 1:
		b.GallonType = b.Items[0].Name
	default:
		b.GallonType = MultipleGallonTypes
	}
}

// Normalize rebuilds the cart of rows written before carts existed.
func (b *Booking) Normalize() {
	if len(b.Items) > 0 {
		return
	}
	if b.GallonCount == 0 && b.NewGallonPurchaseCount == 0 {
		return
	}
	b.Items = []CartItem{{Name: b.GallonType, Refill: b.GallonCount, New: b.NewGallonPurchaseCount}}
}

// Clone returns a copy that shares no mutable state with b.
func (b Booking) Clone() Booking {
	out := b
	if b.Items != nil {
		out.Items = append([]CartItem(nil), b.Items...)
	}
	if b.CompletedAt != nil {
		ts := *b.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}
