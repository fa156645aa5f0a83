// Package sheets is the spreadsheet store: strategy input tabs in, metrics
// and ledger exports out.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Client is the raw tab-level spreadsheet API
type Client interface {
	// ReadValues returns every non-empty row of a tab as text
	ReadValues(ctx context.Context, spreadsheetID, tab string) ([][]string, error)

	// AppendRows appends rows after the last row of a tab
	AppendRows(ctx context.Context, spreadsheetID, tab string, rows [][]interface{}) error

	// UpdateCells writes each update in one batch
	UpdateCells(ctx context.Context, spreadsheetID, tab string, updates []CellUpdate) error

	// EnsureTab creates the tab if it does not exist
	EnsureTab(ctx context.Context, spreadsheetID, tab string) error
}

// CellUpdate writes Values left to right starting at (Row, Col), both 1-based
type CellUpdate struct {
	Row    int
	Col    int
	Values []interface{}
}

// Range returns the update's A1 range inside tab
func (u CellUpdate) Range(tab string) string {
	start := A1(u.Row, u.Col)
	if len(u.Values) <= 1 {
		return TabRange(tab, start)
	}
	return TabRange(tab, start+":"+A1(u.Row, u.Col+len(u.Values)-1))
}

// ColumnName converts a 1-based column number to letters (1 -> A, 27 -> AA)
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// A1 converts a 1-based (row, col) to A1 notation
func A1(row, col int) string {
	return fmt.Sprintf("%s%d", ColumnName(col), row)
}

// TabRange qualifies an A1 range with a quoted tab name. An empty a1 selects the whole tab.
func TabRange(tab, a1 string) string {
	quoted := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if a1 == "" {
		return quoted
	}
	return quoted + "!" + a1
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the id from a spreadsheet URL; bare ids pass through
func SpreadsheetID(url string) (string, error) {
	url = strings.TrimSpace(url)
	if m := spreadsheetIDPattern.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	if url == "" || strings.Contains(url, "/") {
		return "", fmt.Errorf("not a spreadsheet url: %q", url)
	}
	return url, nil
}
