// Package memory is an in-process SnapshotExporter for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"saldi/internal/core"
	ports "saldi/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	tabs    map[string]map[string][]string // account id -> date -> row
	exports int
}

var _ ports.SnapshotExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{tabs: make(map[string]map[string][]string)}
}

func (e *Exporter) ExportSnapshots(_ context.Context, account core.Account, snapshots []core.Snapshot) (string, error) {
	if strings.TrimSpace(account.ID) == "" {
		return "", fmt.Errorf("export snapshots: %w", core.NewValidationError("account id is required"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tab, ok := e.tabs[account.ID]
	if !ok {
		tab = make(map[string][]string)
		e.tabs[account.ID] = tab
	}
	for _, s := range snapshots {
		tab[s.Date.String()] = ports.Row(s)
	}
	e.exports++
	return fmt.Sprintf("mem:%s:%d", account.ID, len(tab)), nil
}

// Rows returns the account's rows ordered by date.
func (e *Exporter) Rows(accountID string) [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	tab := e.tabs[accountID]
	dates := make([]string, 0, len(tab))
	for d := range tab {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	out := make([][]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, slices.Clone(tab[d]))
	}
	return out
}

// Exports counts successful ExportSnapshots calls.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
