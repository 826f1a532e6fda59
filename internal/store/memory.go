package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryWorkbook keeps tables in process memory.
type MemoryWorkbook struct {
	mu     sync.Mutex
	sheets map[string]*MemorySheet
}

func NewMemoryWorkbook() *MemoryWorkbook {
	return &MemoryWorkbook{sheets: make(map[string]*MemorySheet)}
}

func (w *MemoryWorkbook) Sheet(_ context.Context, name string) (Sheet, error) {
	return w.Table(name), nil
}

// Table returns the named sheet, creating it empty.
func (w *MemoryWorkbook) Table(name string) *MemorySheet {
	w.mu.Lock()
	defer w.mu.Unlock()
	sh, ok := w.sheets[name]
	if !ok {
		sh = &MemorySheet{}
		w.sheets[name] = sh
	}
	return sh
}

type MemorySheet struct {
	mu   sync.RWMutex
	rows [][]any
}

func (s *MemorySheet) Rows(_ context.Context) ([][]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out, nil
}

func (s *MemorySheet) WriteHeader(_ context.Context, header []string) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		s.rows = append(s.rows, row)
	} else {
		s.rows[0] = row
	}
	return nil
}

func (s *MemorySheet) UpdateRow(_ context.Context, index int, row []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("row %d out of range", index)
	}
	s.rows[index] = append([]any(nil), row...)
	return nil
}

func (s *MemorySheet) AppendRow(_ context.Context, row []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, append([]any(nil), row...))
	return nil
}

// Len reports the number of rows including the header.
func (s *MemorySheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
