package database

import (
	"context"
	"encoding/json"
	"fmt"

	"aquaflow/internal/store"
)

// Workbook keeps each table as rows of JSON-encoded cells keyed by (sheet, idx).
// Row 0 is the header.
type Workbook struct {
	db *DB
}

func (db *DB) Workbook() *Workbook {
	return &Workbook{db: db}
}

func (w *Workbook) Sheet(_ context.Context, name string) (store.Sheet, error) {
	return &sheet{db: w.db, name: name}, nil
}

type sheet struct {
	db   *DB
	name string
}

func (s *sheet) Rows(ctx context.Context) ([][]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx, cells FROM sheet_rows WHERE sheet = ? ORDER BY idx`, s.name)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.name, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		var (
			idx int
			raw string
		)
		if err := rows.Scan(&idx, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.name, err)
		}
		var cells []any
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", s.name, idx, err)
		}
		for len(out) < idx {
			out = append(out, []any{})
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (s *sheet) WriteHeader(ctx context.Context, header []string) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return s.UpdateRow(ctx, 0, row)
}

func (s *sheet) UpdateRow(ctx context.Context, index int, row []any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row %d: %w", s.name, index, err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sheet_rows (sheet, idx, cells, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(sheet, idx) DO UPDATE SET cells = excluded.cells, updated_at = excluded.updated_at`,
		s.name, index, string(raw))
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", s.name, index, err)
	}
	return nil
}

func (s *sheet) AppendRow(ctx context.Context, row []any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", s.name, err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO sheet_rows (sheet, idx, cells, updated_at)
        SELECT ?, COALESCE(MAX(idx) + 1, 0), ?, CURRENT_TIMESTAMP FROM sheet_rows WHERE sheet = ?`,
		s.name, string(raw), s.name)
	if err != nil {
		return fmt.Errorf("append %s: %w", s.name, err)
	}
	return nil
}
