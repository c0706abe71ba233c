package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"saldi/internal/core"
)

func TestExporterUpsertsByDate(t *testing.T) {
	e := New()
	acc := core.Account{ID: "acc", Name: "Main"}
	ctx := context.Background()

	first := []core.Snapshot{
		{Date: core.NewDate(2024, 1, 2), CurrentAmount: decimal.NewFromInt(5)},
		{Date: core.NewDate(2024, 1, 1), CurrentAmount: decimal.NewFromInt(1)},
	}
	ref, err := e.ExportSnapshots(ctx, acc, first)
	if err != nil || ref != "mem:acc:2" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}

	_, err = e.ExportSnapshots(ctx, acc, []core.Snapshot{
		{Date: core.NewDate(2024, 1, 2), CurrentAmount: decimal.NewFromInt(7)},
	})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}

	rows := e.Rows("acc")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2024-01-01" || rows[1][1] != "7.00" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if e.Exports() != 2 {
		t.Fatalf("expected 2 exports, got %d", e.Exports())
	}
}

func TestExporterRequiresAccountID(t *testing.T) {
	_, err := New().ExportSnapshots(context.Background(), core.Account{}, nil)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
