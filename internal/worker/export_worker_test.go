package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldi/internal/core"
	"saldi/internal/events"
	sheetsmem "saldi/internal/sheets/memory"
)

type fakeSource struct {
	accounts  []core.Account
	snapshots map[string][]core.Snapshot
	listErr   error
}

func (f *fakeSource) GetAccount(_ context.Context, id string) (core.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, core.ErrNotFound
}

func (f *fakeSource) ListAccounts(context.Context) ([]core.Account, error) {
	return f.accounts, f.listErr
}

func (f *fakeSource) ListSnapshots(_ context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	var out []core.Snapshot
	for _, s := range f.snapshots[accountID] {
		if !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

type failingExporter struct{}

func (failingExporter) ExportSnapshots(context.Context, core.Account, []core.Snapshot) (string, error) {
	return "", errors.New("quota exceeded")
}

func chain(accountID string, days ...int) []core.Snapshot {
	out := make([]core.Snapshot, 0, len(days))
	for i, d := range days {
		out = append(out, core.Snapshot{
			ID:            accountID + "-" + core.NewDate(2024, 1, d).String(),
			AccountID:     accountID,
			Date:          core.NewDate(2024, 1, d),
			CurrentAmount: decimal.NewFromInt(int64(i + 1)),
		})
	}
	return out
}

func TestHandleBalanceChanged_ExportsFromAnchor(t *testing.T) {
	src := &fakeSource{
		accounts:  []core.Account{{ID: "a", Name: "Main"}},
		snapshots: map[string][]core.Snapshot{"a": chain("a", 1, 2, 3, 4, 5)},
	}
	exp := sheetsmem.New()
	w := NewExportWorker(src, exp, 2)

	msg := events.NewBalanceChanged("a", events.OpRecordCreated, core.NewDate(2024, 1, 3), "r", 2)
	if err := w.HandleBalanceChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleBalanceChanged: %v", err)
	}

	rows := exp.Rows("a")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows from the anchor onward, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "2024-01-03" {
		t.Errorf("first exported date = %s, want 2024-01-03", rows[0][0])
	}
	// 3 snapshots in batches of 2.
	if exp.Exports() != 2 {
		t.Errorf("expected 2 export calls, got %d", exp.Exports())
	}
}

func TestHandleBalanceChanged_DeletedAccountIsDropped(t *testing.T) {
	w := NewExportWorker(&fakeSource{}, sheetsmem.New(), 0)
	msg := events.NewBalanceChanged("gone", events.OpRecordDeleted, core.NewDate(2024, 1, 1), "r", 0)
	if err := w.HandleBalanceChanged(context.Background(), msg); err != nil {
		t.Fatalf("expected nil for deleted account, got %v", err)
	}
}

func TestHandleBalanceChanged_ExportErrorIsReturned(t *testing.T) {
	src := &fakeSource{
		accounts:  []core.Account{{ID: "a", Name: "Main"}},
		snapshots: map[string][]core.Snapshot{"a": chain("a", 1)},
	}
	w := NewExportWorker(src, failingExporter{}, 10)
	msg := events.NewBalanceChanged("a", events.OpRecordCreated, core.NewDate(2024, 1, 1), "r", 0)
	if err := w.HandleBalanceChanged(context.Background(), msg); err == nil {
		t.Fatal("expected export error to be returned for requeue")
	}
}

func TestExportAll(t *testing.T) {
	src := &fakeSource{
		accounts: []core.Account{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}},
		snapshots: map[string][]core.Snapshot{
			"a": chain("a", 1, 2),
			"b": chain("b", 5),
		},
	}
	exp := sheetsmem.New()
	if err := NewExportWorker(src, exp, 0).ExportAll(context.Background()); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(exp.Rows("a")) != 2 || len(exp.Rows("b")) != 1 || len(exp.Rows("c")) != 0 {
		t.Fatalf("unexpected rows: a=%v b=%v c=%v", exp.Rows("a"), exp.Rows("b"), exp.Rows("c"))
	}
}

func TestExportAll_ListError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("db down")}
	if err := NewExportWorker(src, sheetsmem.New(), 0).ExportAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewExportWorker(&fakeSource{}, sheetsmem.New(), 0).Run(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
