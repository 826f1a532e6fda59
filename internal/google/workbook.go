package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"aquaflow/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputOption  = "RAW"
	valueRenderOption = "UNFORMATTED_VALUE"
	dateRenderOption  = "FORMATTED_STRING"
)

// Workbook stores tables as tabs of a single spreadsheet. Row 1 of each tab
// is the header.
type Workbook struct {
	service       *sheets.Service
	spreadsheetID string
	logger        zerolog.Logger

	mu     sync.Mutex
	titles map[string]bool
}

func NewWorkbook(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*Workbook, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewWorkbookWithService(srv, spreadsheetID, logger), nil
}

// NewWorkbookWithService wraps an already configured Sheets client.
func NewWorkbookWithService(srv *sheets.Service, spreadsheetID string, logger *zerolog.Logger) *Workbook {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Workbook{
		service:       srv,
		spreadsheetID: spreadsheetID,
		logger:        l.With().Str("component", "sheets").Logger(),
	}
}

// TestConnection checks that the spreadsheet is reachable with the configured credentials.
func (w *Workbook) TestConnection(ctx context.Context) error {
	_, err := w.service.Spreadsheets.Get(w.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email of a service account key file.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// Sheet returns the tab with the given title, adding it to the spreadsheet if missing.
func (w *Workbook) Sheet(ctx context.Context, name string) (store.Sheet, error) {
	if err := w.ensureTab(ctx, name); err != nil {
		return nil, err
	}
	return &tab{w: w, name: name}, nil
}

func (w *Workbook) ensureTab(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.titles == nil {
		resp, err := w.service.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("list tabs: %w", err)
		}
		titles := make(map[string]bool, len(resp.Sheets))
		for _, s := range resp.Sheets {
			if s.Properties != nil {
				titles[s.Properties.Title] = true
			}
		}
		w.titles = titles
	}
	if w.titles[name] {
		return nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", name, err)
	}
	w.titles[name] = true
	w.logger.Info().Str("tab", name).Msg("created tab")
	return nil
}

type tab struct {
	w    *Workbook
	name string
}

func (t *tab) Rows(ctx context.Context) ([][]any, error) {
	resp, err := t.w.service.Spreadsheets.Values.Get(t.w.spreadsheetID, t.name).
		ValueRenderOption(valueRenderOption).
		DateTimeRenderOption(dateRenderOption).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	return resp.Values, nil
}

func (t *tab) WriteHeader(ctx context.Context, header []string) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return t.UpdateRow(ctx, 0, row)
}

// UpdateRow overwrites the row at index, where index 0 is the header.
func (t *tab) UpdateRow(ctx context.Context, index int, row []any) error {
	rng := fmt.Sprintf("%s!A%d", t.name, index+1)
	vr := &sheets.ValueRange{Values: [][]any{row}}
	_, err := t.w.service.Spreadsheets.Values.Update(t.w.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (t *tab) AppendRow(ctx context.Context, row []any) error {
	vr := &sheets.ValueRange{Values: [][]any{row}}
	_, err := t.w.service.Spreadsheets.Values.Append(t.w.spreadsheetID, t.name+"!A1", vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", t.name, err)
	}
	return nil
}
