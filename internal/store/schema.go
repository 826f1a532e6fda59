package store

import (
	"fmt"

	"aquaflow/internal/models"
)

// ColumnType tells the store how to coerce a cell on write and canonicalize it on read.
type ColumnType int

const (
	Text ColumnType = iota
	Number
	Bool
	Timestamp
	Date
	JSON
)

type Column struct {
	Name     string
	Type     ColumnType
	Required bool
}

// Schema is the explicit field-to-column mapping of one table.
type Schema struct {
	Kind    models.Kind
	Table   string
	Columns []Column
}

const (
	idColumn    = "id"
	keyColumn   = "key"
	valueColumn = "value"
)

var UsersSchema = Schema{
	Kind:  models.KindUser,
	Table: "Users",
	Columns: []Column{
		{Name: "id", Type: Text, Required: true},
		{Name: "fullName", Type: Text},
		{Name: "mobile", Type: Text},
		{Name: "email", Type: Text},
		{Name: "password", Type: Text},
		{Name: "type", Type: Text, Required: true},
	},
}

var BookingsSchema = Schema{
	Kind:  models.KindBooking,
	Table: "Bookings",
	Columns: []Column{
		{Name: "id", Type: Text, Required: true},
		{Name: "userId", Type: Text, Required: true},
		{Name: "gallonCount", Type: Number},
		{Name: "newGallonPurchaseCount", Type: Number},
		{Name: "gallonType", Type: Text},
		{Name: "pickupAddress", Type: Text},
		{Name: "pickupDate", Type: Date},
		{Name: "timeSlot", Type: Text},
		{Name: "notes", Type: Text},
		{Name: "status", Type: Text, Required: true},
		{Name: "deliveryOption", Type: Bool},
		{Name: "createdAt", Type: Timestamp},
		{Name: "completedAt", Type: Timestamp},
		{Name: "price", Type: Number},
		{Name: "paymentMethod", Type: Text},
		{Name: "items", Type: JSON},
	},
}

var SettingsSchema = Schema{
	Kind:  models.KindSettings,
	Table: "Settings",
	Columns: []Column{
		{Name: keyColumn, Type: Text, Required: true},
		{Name: valueColumn, Type: Text},
	},
}

func SchemaFor(kind models.Kind) (Schema, error) {
	switch kind {
	case models.KindUser:
		return UsersSchema, nil
	case models.KindBooking:
		return BookingsSchema, nil
	case models.KindSettings:
		return SettingsSchema, nil
	default:
		return Schema{}, fmt.Errorf("%w: %q", models.ErrUnknownKind, kind)
	}
}

// Header is the canonical header row written to an empty table.
func (s Schema) Header() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate rejects a record before any row scan: required fields must be
// present, typed fields must coerce, and closed enums must hold known values.
func (s Schema) Validate(rec Record) error {
	for _, c := range s.Columns {
		v, ok := rec[c.Name]
		if c.Required && (!ok || cellString(v) == "") {
			return fmt.Errorf("%w: %s.%s is required", ErrMalformedRecord, s.Table, c.Name)
		}
		if !ok {
			continue
		}
		if _, err := encodeCell(c, v); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrMalformedRecord, s.Table, c.Name, err)
		}
	}

	switch s.Kind {
	case models.KindUser:
		if role := models.Role(cellString(rec["type"])); !role.Valid() {
			return fmt.Errorf("%w: unknown user type %q", ErrMalformedRecord, role)
		}
	case models.KindBooking:
		if st := models.Status(cellString(rec["status"])); !st.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrMalformedRecord, st)
		}
	}
	return nil
}

// encodeRow lays rec out in the order of the table's actual header.
func (s Schema) encodeRow(header []string, rec Record) ([]any, error) {
	row := make([]any, len(header))
	for i, name := range header {
		v, ok := rec[name]
		if !ok || v == nil {
			row[i] = ""
			continue
		}
		col, known := s.Column(name)
		if !known {
			col = Column{Name: name, Type: Text}
		}
		cell, err := encodeCell(col, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedRecord, s.Table, name, err)
		}
		row[i] = cell
	}
	return row, nil
}

// decodeRow turns a stored row into a record keyed by header names.
func (s Schema) decodeRow(header []string, row []any) (Record, []error) {
	rec := make(Record, len(header))
	var errs []error
	for i, name := range header {
		if name == "" {
			continue
		}
		var cell any
		if i < len(row) {
			cell = row[i]
		}
		col, known := s.Column(name)
		if !known {
			col = Column{Name: name, Type: Text}
		}
		v, err := decodeCell(col, cell)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", s.Table, name, err))
		}
		rec[name] = v
	}
	return rec, errs
}
