// Package store implements the keyed upsert store over header-driven tables.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"aquaflow/internal/lock"
	"aquaflow/internal/metrics"
	"aquaflow/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrMalformedRecord rejects a payload before any row is scanned.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrLockTimeout means the write was abandoned without touching the table.
	ErrLockTimeout = lock.ErrTimeout
	// ErrNoIDColumn means the table header lost its id column.
	ErrNoIDColumn = errors.New("table has no id column")
)

// Record is one row as field name to value.
type Record map[string]any

// Sheet is one header-driven table. Row indexes count from 0, and row 0 is the header.
type Sheet interface {
	Rows(ctx context.Context) ([][]any, error)
	WriteHeader(ctx context.Context, header []string) error
	UpdateRow(ctx context.Context, index int, row []any) error
	AppendRow(ctx context.Context, row []any) error
}

// Workbook resolves tables by name, creating them on first use.
type Workbook interface {
	Sheet(ctx context.Context, name string) (Sheet, error)
}

// Snapshot is the bulk read of every table.
type Snapshot struct {
	Users    []Record `json:"users"`
	Bookings []Record `json:"bookings"`
	Settings Record   `json:"settings"`
}

type Store struct {
	book     Workbook
	locker   lock.Locker
	lockWait time.Duration
	now      func() time.Time
	logger   *zerolog.Logger
}

// DefaultLockWait bounds how long a write waits for the global lock.
const DefaultLockWait = 30 * time.Second

func New(book Workbook, locker lock.Locker, lockWait time.Duration, logger *zerolog.Logger) *Store {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "store").Logger()
	return &Store{book: book, locker: locker, lockWait: lockWait, now: time.Now, logger: &l}
}

// Upsert inserts rec into the table for kind, or overwrites the row whose id
// matches. Settings payloads are merged key by key instead.
func (s *Store) Upsert(ctx context.Context, kind models.Kind, rec Record) error {
	if kind == models.KindSettings {
		return s.MergeSettings(ctx, rec)
	}

	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}
	if err := schema.Validate(rec); err != nil {
		metrics.IncStoreWrite(string(kind), "rejected")
		return err
	}
	id := cellString(rec[idColumn])

	err = s.withLock(ctx, func() error {
		return s.upsertLocked(ctx, schema, id, rec)
	})
	s.observe(kind, err)
	if err != nil {
		return err
	}

	s.logger.Debug().Str("kind", string(kind)).Str("id", id).Msg("record upserted")
	return nil
}

func (s *Store) upsertLocked(ctx context.Context, schema Schema, id string, rec Record) error {
	sheet, err := s.book.Sheet(ctx, schema.Table)
	if err != nil {
		return fmt.Errorf("open %s: %w", schema.Table, err)
	}

	rows, header, err := s.ensureHeader(ctx, sheet, schema)
	if err != nil {
		return err
	}

	idCol := indexOf(header, idColumn)
	if idCol < 0 {
		return fmt.Errorf("%w: %s", ErrNoIDColumn, schema.Table)
	}

	row, err := schema.encodeRow(header, rec)
	if err != nil {
		return err
	}

	for i := 1; i < len(rows); i++ {
		if idCol < len(rows[i]) && cellString(rows[i][idCol]) == id {
			if err := sheet.UpdateRow(ctx, i, row); err != nil {
				return fmt.Errorf("update %s row %d: %w", schema.Table, i, err)
			}
			return nil
		}
	}

	if err := sheet.AppendRow(ctx, row); err != nil {
		return fmt.Errorf("append %s: %w", schema.Table, err)
	}
	return nil
}

// MergeSettings writes each payload key to its own row. Keys absent from the
// payload keep their previous rows untouched.
func (s *Store) MergeSettings(ctx context.Context, payload Record) error {
	if len(payload) == 0 {
		metrics.IncStoreWrite(string(models.KindSettings), "rejected")
		return fmt.Errorf("%w: settings payload is empty", ErrMalformedRecord)
	}

	keys := make([]string, 0, len(payload))
	cells := make(map[string]any, len(payload))
	for k, v := range payload {
		if strings.TrimSpace(k) == "" {
			metrics.IncStoreWrite(string(models.KindSettings), "rejected")
			return fmt.Errorf("%w: blank settings key", ErrMalformedRecord)
		}
		cell, err := encodeSettingValue(v)
		if err != nil {
			metrics.IncStoreWrite(string(models.KindSettings), "rejected")
			return fmt.Errorf("%w: settings %s: %v", ErrMalformedRecord, k, err)
		}
		keys = append(keys, k)
		cells[k] = cell
	}
	sort.Strings(keys)

	err := s.withLock(ctx, func() error {
		return s.mergeLocked(ctx, keys, cells)
	})
	s.observe(models.KindSettings, err)
	return err
}

func (s *Store) mergeLocked(ctx context.Context, keys []string, cells map[string]any) error {
	sheet, err := s.book.Sheet(ctx, SettingsSchema.Table)
	if err != nil {
		return fmt.Errorf("open %s: %w", SettingsSchema.Table, err)
	}

	rows, header, err := s.ensureHeader(ctx, sheet, SettingsSchema)
	if err != nil {
		return err
	}

	keyCol, valCol := indexOf(header, keyColumn), indexOf(header, valueColumn)
	if keyCol < 0 || valCol < 0 {
		return fmt.Errorf("%w: %s needs key and value columns", ErrNoIDColumn, SettingsSchema.Table)
	}

	existing := make(map[string]int, len(rows))
	for i := 1; i < len(rows); i++ {
		if keyCol < len(rows[i]) {
			if k := cellString(rows[i][keyCol]); k != "" {
				existing[k] = i
			}
		}
	}

	next := len(rows)
	for _, k := range keys {
		row := make([]any, len(header))
		for i := range row {
			row[i] = ""
		}
		row[keyCol] = k
		row[valCol] = cells[k]

		if idx, ok := existing[k]; ok {
			if err := sheet.UpdateRow(ctx, idx, row); err != nil {
				return fmt.Errorf("update setting %s: %w", k, err)
			}
			continue
		}
		if err := sheet.AppendRow(ctx, row); err != nil {
			return fmt.Errorf("append setting %s: %w", k, err)
		}
		existing[k] = next
		next++
	}
	return nil
}

// ReadAll converts every row of the table for kind into a record using the
// header row as field names. Empty or header-less tables yield an empty list.
func (s *Store) ReadAll(ctx context.Context, kind models.Kind) ([]Record, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	sheet, err := s.book.Sheet(ctx, schema.Table)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", schema.Table, err)
	}
	rows, err := sheet.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", schema.Table, err)
	}

	out := []Record{}
	header := headerOf(rows)
	if len(header) == 0 {
		return out, nil
	}

	for i := 1; i < len(rows); i++ {
		if blankRow(rows[i]) {
			continue
		}
		rec, errs := schema.decodeRow(header, rows[i])
		for _, e := range errs {
			s.logger.Warn().Err(e).Int("row", i+1).Msg("uncoercible cell")
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadSettings returns the settings table as key to parsed value.
func (s *Store) ReadSettings(ctx context.Context) (Record, error) {
	rows, err := s.ReadAll(ctx, models.KindSettings)
	if err != nil {
		return nil, err
	}
	out := make(Record, len(rows))
	for _, r := range rows {
		k := cellString(r[keyColumn])
		if k == "" {
			continue
		}
		out[k] = decodeSettingValue(r[valueColumn])
	}
	return out, nil
}

// Snapshot reads users, bookings and settings. Reads take no lock.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	users, err := s.ReadAll(ctx, models.KindUser)
	if err != nil {
		return Snapshot{}, err
	}
	bookings, err := s.ReadAll(ctx, models.KindBooking)
	if err != nil {
		return Snapshot{}, err
	}
	settings, err := s.ReadSettings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Users: users, Bookings: bookings, Settings: settings}, nil
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	start := s.now()
	release, err := s.locker.Acquire(ctx, s.lockWait)
	metrics.ObserveLockWait(s.now().Sub(start))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.logger.Warn().Dur("wait", s.lockWait).Msg("write lock timeout")
			return err
		}
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer release()
	return fn()
}

func (s *Store) ensureHeader(ctx context.Context, sheet Sheet, schema Schema) ([][]any, []string, error) {
	rows, err := sheet.Rows(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", schema.Table, err)
	}
	header := headerOf(rows)
	if len(header) > 0 {
		return rows, header, nil
	}

	header = schema.Header()
	if err := sheet.WriteHeader(ctx, header); err != nil {
		return nil, nil, fmt.Errorf("write %s header: %w", schema.Table, err)
	}
	s.logger.Info().Str("table", schema.Table).Msg("created header row")

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	return [][]any{headerRow}, header, nil
}

func (s *Store) observe(kind models.Kind, err error) {
	switch {
	case err == nil:
		metrics.IncStoreWrite(string(kind), "ok")
	case errors.Is(err, ErrLockTimeout):
		metrics.IncStoreWrite(string(kind), "lock_timeout")
	default:
		metrics.IncStoreWrite(string(kind), "error")
	}
}

func headerOf(rows [][]any) []string {
	if len(rows) == 0 || blankRow(rows[0]) {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = cellString(c)
	}
	return header
}

func blankRow(row []any) bool {
	for _, c := range row {
		if !isBlank(c) {
			return false
		}
	}
	return true
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
