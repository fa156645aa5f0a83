package sheets

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryClient keeps spreadsheets in memory (dry runs, tests)
type MemoryClient struct {
	mu     sync.Mutex
	books  map[string]map[string][][]string // spreadsheet id -> tab -> rows
	fail   map[string]error
	calls  int
	failN  int
	failEr error
}

// NewMemoryClient creates an empty store
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		books: make(map[string]map[string][][]string),
		fail:  make(map[string]error),
	}
}

// SetValues replaces a tab's contents
func (m *MemoryClient) SetValues(spreadsheetID, tab string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tabLocked(spreadsheetID, tab)
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = append([]string(nil), r...)
	}
	m.books[spreadsheetID][tab] = copied
}

// Values returns a copy of a tab's contents
func (m *MemoryClient) Values(spreadsheetID, tab string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.books[spreadsheetID][tab]
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// HasTab reports whether a tab exists
func (m *MemoryClient) HasTab(spreadsheetID, tab string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.books[spreadsheetID][tab]
	return ok
}

// FailSpreadsheet makes every call against spreadsheetID return err
func (m *MemoryClient) FailSpreadsheet(spreadsheetID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[spreadsheetID] = err
}

// FailNext makes the next n calls return err
func (m *MemoryClient) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failN = n
	m.failEr = err
}

// Calls returns how many calls were made
func (m *MemoryClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryClient) checkLocked(spreadsheetID string) error {
	m.calls++
	if m.failN > 0 {
		m.failN--
		return m.failEr
	}
	return m.fail[spreadsheetID]
}

func (m *MemoryClient) tabLocked(spreadsheetID, tab string) [][]string {
	book, ok := m.books[spreadsheetID]
	if !ok {
		book = make(map[string][][]string)
		m.books[spreadsheetID] = book
	}
	if _, ok := book[tab]; !ok {
		book[tab] = nil
	}
	return book[tab]
}

// ReadValues implements Client
func (m *MemoryClient) ReadValues(_ context.Context, spreadsheetID, tab string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(spreadsheetID); err != nil {
		return nil, err
	}
	rows, ok := m.books[spreadsheetID][tab]
	if !ok {
		return nil, fmt.Errorf("tab %s not found", tab)
	}

	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

// AppendRows implements Client
func (m *MemoryClient) AppendRows(_ context.Context, spreadsheetID, tab string, rows [][]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(spreadsheetID); err != nil {
		return err
	}

	current := m.tabLocked(spreadsheetID, tab)
	for _, r := range rows {
		current = append(current, toText(r))
	}
	m.books[spreadsheetID][tab] = current
	return nil
}

// UpdateCells implements Client
func (m *MemoryClient) UpdateCells(_ context.Context, spreadsheetID, tab string, updates []CellUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(spreadsheetID); err != nil {
		return err
	}

	current := m.tabLocked(spreadsheetID, tab)
	for _, u := range updates {
		for len(current) < u.Row {
			current = append(current, nil)
		}
		row := current[u.Row-1]
		for i, v := range toText(u.Values) {
			col := u.Col - 1 + i
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = v
		}
		current[u.Row-1] = row
	}
	m.books[spreadsheetID][tab] = current
	return nil
}

// EnsureTab implements Client
func (m *MemoryClient) EnsureTab(_ context.Context, spreadsheetID, tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(spreadsheetID); err != nil {
		return err
	}
	m.tabLocked(spreadsheetID, tab)
	return nil
}

func toText(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}
