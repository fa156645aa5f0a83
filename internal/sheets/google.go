package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

// GoogleClient talks to the Google Sheets v4 API with a service account
type GoogleClient struct {
	svc *gsheets.Service

	mu   sync.Mutex
	tabs map[string]map[string]bool // spreadsheet id -> known tab titles
}

// NewGoogleClient authenticates with a service-account key file
func NewGoogleClient(ctx context.Context, credentialsFile string) (*GoogleClient, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &GoogleClient{
		svc:  svc,
		tabs: make(map[string]map[string]bool),
	}, nil
}

// ReadValues implements Client
func (c *GoogleClient) ReadValues(ctx context.Context, spreadsheetID, tab string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, TabRange(tab, "")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tab, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	return rows, nil
}

// AppendRows implements Client
func (c *GoogleClient) AppendRows(ctx context.Context, spreadsheetID, tab string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	vr := &gsheets.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, TabRange(tab, "A1"), vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", tab, err)
	}
	return nil
}

// UpdateCells implements Client
func (c *GoogleClient) UpdateCells(ctx context.Context, spreadsheetID, tab string, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	data := make([]*gsheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheets.ValueRange{
			Range:  u.Range(tab),
			Values: [][]interface{}{u.Values},
		})
	}

	req := &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update %s: %w", tab, err)
	}
	return nil
}

// EnsureTab implements Client
func (c *GoogleClient) EnsureTab(ctx context.Context, spreadsheetID, tab string) error {
	c.mu.Lock()
	known := c.tabs[spreadsheetID]
	c.mu.Unlock()
	if known[tab] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to list tabs: %w", err)
	}

	titles := make(map[string]bool, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = true
		}
	}

	if !titles[tab] {
		req := &gsheets.BatchUpdateSpreadsheetRequest{
			Requests: []*gsheets.Request{{
				AddSheet: &gsheets.AddSheetRequest{
					Properties: &gsheets.SheetProperties{Title: tab},
				},
			}},
		}
		if _, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to add tab %s: %w", tab, err)
		}
		titles[tab] = true
	}

	c.mu.Lock()
	c.tabs[spreadsheetID] = titles
	c.mu.Unlock()
	return nil
}

// IsRateLimited reports whether err is a quota / 429 response
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota exceeded") || strings.Contains(msg, "rate limit")
}
