package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aquaflow/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	revenueSheet  = "Revenue"
)

var bookingHeaders = []string{
	"ID", "Customer", "Mobile", "Status", "Items", "Pickup Date", "Time Slot",
	"Delivery", "Payment", "Price", "Created", "Completed",
}

// Export writes bookings and the payments summary to an .xlsx file in dir and
// returns its path.
func Export(dir string, bookings []models.Booking, users []models.User, pay Payments, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(revenueSheet); err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return "", fmt.Errorf("create style: %w", err)
	}

	if err := writeBookings(f, header, bookings, users); err != nil {
		return "", err
	}
	if err := writeRevenue(f, header, pay); err != nil {
		return "", err
	}
	_ = f.DeleteSheet("Sheet1")

	path := filepath.Join(dir, fmt.Sprintf("aquaflow_%s_%s.xlsx", pay.Period, now.Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

func writeBookings(f *excelize.File, style int, bookings []models.Booking, users []models.User) error {
	if err := f.SetSheetRow(bookingsSheet, "A1", &bookingHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(bookingsSheet, "A1", last, style)

	names := make(map[string]models.User, len(users))
	for _, u := range users {
		names[u.ID] = u
	}

	for i, b := range bookings {
		customer := names[b.UserID]
		completed := ""
		if b.CompletedAt != nil {
			completed = b.CompletedAt.Format(time.DateTime)
		}
		price, _ := b.Price.Float64()
		row := []any{
			b.ID, customer.FullName, customer.Mobile, string(b.Status), itemsText(b.Items),
			b.PickupDate, b.TimeSlot, b.DeliveryOption, string(b.PaymentMethod), price,
			b.CreatedAt.Format(time.DateTime), completed,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 18)
	_ = f.SetColWidth(bookingsSheet, "B", "L", 16)
	_ = f.SetColWidth(bookingsSheet, "E", "E", 30)
	return nil
}

func writeRevenue(f *excelize.File, style int, pay Payments) error {
	period := string(pay.Period)
	if !pay.From.IsZero() {
		period = fmt.Sprintf("%s (since %s)", pay.Period, pay.From.Format(time.DateOnly))
	}
	_ = f.SetCellValue(revenueSheet, "A1", "Period")
	_ = f.SetCellValue(revenueSheet, "B1", period)

	head := []any{"Payment Method", "Bookings", "Revenue"}
	if err := f.SetSheetRow(revenueSheet, "A3", &head); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	_ = f.SetCellStyle(revenueSheet, "A3", "C3", style)

	row := 4
	for _, m := range pay.ByMethod {
		revenue, _ := m.Revenue.Float64()
		values := []any{string(m.Method), m.Count, revenue}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(revenueSheet, cell, &values); err != nil {
			return fmt.Errorf("write revenue: %w", err)
		}
		row++
	}

	total, _ := pay.Total.Float64()
	values := []any{"Total", len(pay.Bookings), total}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(revenueSheet, cell, &values); err != nil {
		return fmt.Errorf("write total: %w", err)
	}
	end, _ := excelize.CoordinatesToCellName(3, row)
	_ = f.SetCellStyle(revenueSheet, cell, end, style)
	_ = f.SetColWidth(revenueSheet, "A", "C", 20)
	return nil
}

func itemsText(items []models.CartItem) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %d refill/%d new", it.Name, it.Refill, it.New)
	}
	return out
}
