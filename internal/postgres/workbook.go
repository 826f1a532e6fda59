package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"aquaflow/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ store.Workbook = (*Workbook)(nil)

// Workbook keeps every table in one sheet_rows relation with jsonb cells.
type Workbook struct {
	pool *pgxpool.Pool
}

// NewWorkbook connects to databaseURL and runs migrations.
func NewWorkbook(ctx context.Context, databaseURL string) (*Workbook, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	w := &Workbook{pool: pool}
	if err := w.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

// Close releases database resources.
func (w *Workbook) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}

func (w *Workbook) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

func (w *Workbook) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sheet_rows (
			sheet TEXT NOT NULL,
			idx INTEGER NOT NULL,
			cells JSONB NOT NULL DEFAULT '[]'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (sheet, idx)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := w.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func (w *Workbook) Sheet(_ context.Context, name string) (store.Sheet, error) {
	return &sheet{pool: w.pool, name: name}, nil
}

// Drop deletes every row of a table.
func (w *Workbook) Drop(ctx context.Context, name string) error {
	if _, err := w.pool.Exec(ctx, `DELETE FROM sheet_rows WHERE sheet = $1`, name); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	return nil
}

type sheet struct {
	pool *pgxpool.Pool
	name string
}

func (s *sheet) Rows(ctx context.Context) ([][]any, error) {
	rows, err := s.pool.Query(ctx, `SELECT idx, cells::text FROM sheet_rows WHERE sheet = $1 ORDER BY idx`, s.name)
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
	const query = `
		INSERT INTO sheet_rows (sheet, idx, cells, updated_at) VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (sheet, idx) DO UPDATE SET cells = EXCLUDED.cells, updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, query, s.name, index, string(raw)); err != nil {
		return fmt.Errorf("update %s row %d: %w", s.name, index, err)
	}
	return nil
}

func (s *sheet) AppendRow(ctx context.Context, row []any) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", s.name, err)
	}
	const query = `
		INSERT INTO sheet_rows (sheet, idx, cells, updated_at)
		SELECT $1, COALESCE(MAX(idx) + 1, 0), $2::jsonb, NOW() FROM sheet_rows WHERE sheet = $1`
	if _, err := s.pool.Exec(ctx, query, s.name, string(raw)); err != nil {
		return fmt.Errorf("append %s: %w", s.name, err)
	}
	return nil
}
