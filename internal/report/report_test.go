package report

import (
	"path/filepath"
	"testing"
	"time"

	"aquaflow/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// 2025-03-05 is a Wednesday.
var now = time.Date(2025, 3, 5, 15, 30, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func fixtures() []models.Booking {
	return []models.Booking{
		{ID: "B1", UserID: "U1", Status: models.StatusCompleted, Price: decimal.NewFromInt(200),
			PaymentMethod: models.PaymentGCash, CreatedAt: now.Add(-2 * time.Hour), CompletedAt: at(now.Add(-time.Hour))},
		{ID: "B2", UserID: "U1", Status: models.StatusCompleted, Price: decimal.NewFromInt(50),
			PaymentMethod: models.PaymentCash, CreatedAt: now.AddDate(0, 0, -3), CompletedAt: at(now.AddDate(0, 0, -2))},
		{ID: "B3", UserID: "U2", Status: models.StatusCompleted, Price: decimal.NewFromInt(75),
			PaymentMethod: models.PaymentCashOnDelivery, CreatedAt: now.AddDate(0, -1, 0)},
		{ID: "B4", UserID: "U2", Status: models.StatusPending, Price: decimal.NewFromInt(999),
			PaymentMethod: models.PaymentGCash, CreatedAt: now},
		{ID: "B5", UserID: "U2", Status: models.StatusOutForDelivery, Price: decimal.NewFromInt(25), CreatedAt: now},
		{ID: "B6", UserID: "U1", Status: models.StatusCancelled, Price: decimal.NewFromInt(25), CreatedAt: now},
	}
}

func TestBuildOverview(t *testing.T) {
	o := BuildOverview(fixtures())
	assert.Equal(t, 6, o.Total)
	assert.Equal(t, 3, o.Completed)
	assert.Equal(t, 1, o.Pending)
	assert.Equal(t, 1, o.Active)
	assert.Equal(t, 1, o.Cancelled)
	assert.True(t, o.Revenue.Equal(decimal.NewFromInt(325)), o.Revenue.String())

	empty := BuildOverview(nil)
	assert.True(t, empty.Revenue.IsZero())
}

func TestPeriodStart(t *testing.T) {
	from, ok := PeriodToday.Start(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), from)

	from, _ = PeriodWeekly.Start(now)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), from)

	sunday := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	from, _ = PeriodWeekly.Start(sunday)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), from)

	from, _ = PeriodMonthly.Start(now)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), from)

	_, ok = PeriodAll.Start(now)
	assert.False(t, ok)
}

func TestBuildPayments(t *testing.T) {
	cases := []struct {
		period Period
		total  int64
		ids    []string
	}{
		{PeriodToday, 200, []string{"B1"}},
		{PeriodWeekly, 250, []string{"B1", "B2"}},
		{PeriodMonthly, 250, []string{"B1", "B2"}},
		{PeriodAll, 325, []string{"B1", "B2", "B3"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			p := BuildPayments(fixtures(), tc.period, now)
			assert.True(t, p.Total.Equal(decimal.NewFromInt(tc.total)), p.Total.String())
			var ids []string
			for _, b := range p.Bookings {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tc.ids, ids)
			require.Len(t, p.ByMethod, len(models.PaymentMethods))
		})
	}

	p := BuildPayments(fixtures(), PeriodAll, now)
	byMethod := map[models.PaymentMethod]MethodRevenue{}
	for _, m := range p.ByMethod {
		byMethod[m.Method] = m
	}
	assert.True(t, byMethod[models.PaymentGCash].Revenue.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 1, byMethod[models.PaymentCash].Count)
	assert.True(t, byMethod[models.PaymentCashOnDelivery].Revenue.Equal(decimal.NewFromInt(75)))
}

func TestBuildPayments_UnlistedMethod(t *testing.T) {
	legacy := []models.Booking{{ID: "B1", Status: models.StatusCompleted, Price: decimal.NewFromInt(10), PaymentMethod: "Bank", CreatedAt: now}}
	p := BuildPayments(legacy, PeriodAll, now)
	require.Len(t, p.ByMethod, len(models.PaymentMethods)+1)
	last := p.ByMethod[len(p.ByMethod)-1]
	assert.Equal(t, models.PaymentMethod("Bank"), last.Method)
	assert.Equal(t, 1, last.Count)
}

func TestFilters(t *testing.T) {
	ids := func(bs []models.Booking) []string {
		out := []string{}
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}
	all := fixtures()
	assert.Equal(t, []string{"B4"}, ids(FilterPending.Apply(all)))
	assert.Equal(t, []string{"B5"}, ids(FilterActive.Apply(all)))
	assert.Equal(t, []string{"B1", "B2", "B3"}, ids(FilterCompleted.Apply(all)))
	assert.Equal(t, []string{"B6"}, ids(FilterCancelled.Apply(all)))
	assert.Len(t, FilterAll.Apply(all), 6)

	f, err := ParseFilter("Active")
	require.NoError(t, err)
	assert.Equal(t, FilterActive, f)
	_, err = ParseFilter("archived")
	assert.Error(t, err)

	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, p)
	_, err = ParsePeriod("yearly")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	users := []models.User{{ID: "U1", FullName: "Ana", Mobile: "0917"}}
	bookings := fixtures()
	bookings[0].Items = []models.CartItem{{Name: "Slim", Refill: 2, New: 1}}
	pay := BuildPayments(bookings, PeriodWeekly, now)

	path, err := Export(dir, bookings, users, pay, now)
	require.NoError(t, err)
	assert.Equal(t, "aquaflow_weekly_20250305_153000.xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{bookingsSheet, revenueSheet}, f.GetSheetList())

	rows, err := f.GetRows(bookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(bookings)+1)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "B1", rows[1][0])
	assert.Equal(t, "Ana", rows[1][1])
	assert.Equal(t, "Slim 2 refill/1 new", rows[1][4])

	total, err := f.GetCellValue(revenueSheet, "C7")
	require.NoError(t, err)
	assert.Equal(t, "250", total)
	label, _ := f.GetCellValue(revenueSheet, "A7")
	assert.Equal(t, "Total", label)
}
