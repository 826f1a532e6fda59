// Package report aggregates bookings for the admin dashboards and exports.
package report

import (
	"fmt"
	"strings"
	"time"

	"aquaflow/internal/models"

	"github.com/shopspring/decimal"
)

// Period bounds the payments view.
type Period string

const (
	PeriodToday   Period = "today"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAll     Period = "all"
)

func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodToday, PeriodWeekly, PeriodMonthly, PeriodAll:
		return p, nil
	case "":
		return PeriodAll, nil
	default:
		return "", fmt.Errorf("unknown period %q", raw)
	}
}

// Start returns the first instant of the period containing now, in now's
// location. Weeks start on Monday. PeriodAll has no start.
func (p Period) Start(now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodToday:
		return today, true
	case PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset), true
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

// Filter selects bookings by lifecycle stage.
type Filter string

const (
	FilterPending   Filter = "pending"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
	FilterCancelled Filter = "cancelled"
	FilterAll       Filter = "all"
)

func ParseFilter(raw string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case FilterPending, FilterActive, FilterCompleted, FilterCancelled, FilterAll:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("unknown filter %q", raw)
	}
}

func (f Filter) Match(b models.Booking) bool {
	switch f {
	case FilterPending:
		return b.Status == models.StatusPending
	case FilterActive:
		return b.Status != models.StatusPending && !b.Status.Terminal()
	case FilterCompleted:
		return b.Status == models.StatusCompleted
	case FilterCancelled:
		return b.Status == models.StatusCancelled
	default:
		return true
	}
}

// Apply keeps the bookings matching f, preserving order.
func (f Filter) Apply(bookings []models.Booking) []models.Booking {
	out := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}

type Overview struct {
	Total     int
	Completed int
	Pending   int
	Active    int
	Cancelled int
	Revenue   decimal.Decimal
}

// BuildOverview counts bookings by stage. Only completed bookings earn revenue.
func BuildOverview(bookings []models.Booking) Overview {
	o := Overview{Total: len(bookings), Revenue: decimal.Zero}
	for _, b := range bookings {
		switch {
		case b.Status == models.StatusCompleted:
			o.Completed++
			o.Revenue = o.Revenue.Add(b.Price)
		case b.Status == models.StatusCancelled:
			o.Cancelled++
		case b.Status == models.StatusPending:
			o.Pending++
		default:
			o.Active++
		}
	}
	return o
}

// MethodRevenue is the revenue collected through one payment method.
type MethodRevenue struct {
	Method  models.PaymentMethod
	Count   int
	Revenue decimal.Decimal
}

type Payments struct {
	Period   Period
	From     time.Time
	Total    decimal.Decimal
	ByMethod []MethodRevenue
	Bookings []models.Booking
}

// settledAt is when a completed booking was paid. Rows that never recorded a
// completion time fall back to their creation time.
func settledAt(b models.Booking) time.Time {
	if b.CompletedAt != nil {
		return *b.CompletedAt
	}
	return b.CreatedAt
}

// BuildPayments sums completed bookings settled within the period. Every
// known payment method is listed, even at zero.
func BuildPayments(bookings []models.Booking, period Period, now time.Time) Payments {
	from, bounded := period.Start(now)
	p := Payments{Period: period, From: from, Total: decimal.Zero}

	index := make(map[models.PaymentMethod]int, len(models.PaymentMethods))
	for _, m := range models.PaymentMethods {
		index[m] = len(p.ByMethod)
		p.ByMethod = append(p.ByMethod, MethodRevenue{Method: m, Revenue: decimal.Zero})
	}

	for _, b := range bookings {
		if b.Status != models.StatusCompleted {
			continue
		}
		if bounded && settledAt(b).Before(from) {
			continue
		}
		p.Bookings = append(p.Bookings, b)
		p.Total = p.Total.Add(b.Price)

		i, ok := index[b.PaymentMethod]
		if !ok {
			i = len(p.ByMethod)
			index[b.PaymentMethod] = i
			p.ByMethod = append(p.ByMethod, MethodRevenue{Method: b.PaymentMethod, Revenue: decimal.Zero})
		}
		p.ByMethod[i].Count++
		p.ByMethod[i].Revenue = p.ByMethod[i].Revenue.Add(b.Price)
	}
	return p
}
