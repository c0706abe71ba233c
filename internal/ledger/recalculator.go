package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"saldi/internal/core"
	"saldi/internal/log"
)

// Recalculator restores the running-balance invariant forward from an
// anchor snapshot.
type Recalculator struct{}

// Roll recomputes the balances of later, which must be sorted by date and
// all follow start, and returns the snapshots whose balance changed.
func (Recalculator) Roll(start decimal.Decimal, later []core.Snapshot) []core.Snapshot {
	running := start
	var changed []core.Snapshot
	for _, s := range later {
		running = running.Add(s.Delta())
		if s.CurrentAmount.Equal(running) {
			continue
		}
		s.CurrentAmount = running
		changed = append(changed, s)
	}
	return changed
}

// Propagate rewrites every snapshot after anchor so that each balance equals
// its predecessor plus its own net movement. It returns the rewritten
// snapshots; a second call from the same anchor returns none.
func (r Recalculator) Propagate(ctx context.Context, store Store, anchor core.Snapshot) ([]core.Snapshot, error) {
	later, err := store.FindSnapshotsAfter(ctx, anchor.AccountID, anchor.Date)
	if err != nil {
		return nil, fmt.Errorf("load snapshots after %s: %w", anchor.Date, err)
	}

	changed := r.Roll(anchor.CurrentAmount, later)
	if len(changed) == 0 {
		return nil, nil
	}
	if err := store.SaveSnapshots(ctx, changed); err != nil {
		return nil, fmt.Errorf("save propagated snapshots: %w", err)
	}

	slog.DebugContext(ctx, "Propagated balance change",
		log.FieldComponent, log.ComponentLedger,
		log.FieldAccountID, anchor.AccountID,
		log.FieldAnchorDate, anchor.Date.String(),
		"scanned", len(later),
		"rewritten", len(changed))
	return changed, nil
}

// Rebuild recomputes every snapshot of an account from a zero opening
// balance.
func (r Recalculator) Rebuild(ctx context.Context, store Store, accountID string) ([]core.Snapshot, error) {
	all, err := store.ListSnapshots(ctx, accountID, core.MinDate, core.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	changed := r.Roll(decimal.Zero, all)
	if len(changed) == 0 {
		return nil, nil
	}
	if err := store.SaveSnapshots(ctx, changed); err != nil {
		return nil, fmt.Errorf("save rebuilt snapshots: %w", err)
	}
	slog.InfoContext(ctx, "Rebuilt account balances",
		log.FieldComponent, log.ComponentLedger,
		log.FieldAccountID, accountID,
		"rewritten", len(changed))
	return changed, nil
}

// Violation describes a snapshot whose balance disagrees with its
// predecessor.
type Violation struct {
	Snapshot core.Snapshot
	Expected decimal.Decimal
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: balance %s, expected %s",
		v.Snapshot.AccountID, v.Snapshot.Date,
		core.FormatAmount(v.Snapshot.CurrentAmount), core.FormatAmount(v.Expected))
}

// Verify checks the invariant over the chain of one account, sorted by date.
func Verify(chain []core.Snapshot) []Violation {
	var violations []Violation
	previous := decimal.Zero
	for _, s := range chain {
		expected := previous.Add(s.Delta())
		if !s.CurrentAmount.Equal(expected) {
			violations = append(violations, Violation{Snapshot: s, Expected: expected})
		}
		previous = s.CurrentAmount
	}
	return violations
}
