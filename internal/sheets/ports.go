// Package sheets defines the outbound port used to mirror ledger snapshots
// into a spreadsheet.
package sheets

import (
	"context"
	"strconv"

	"saldi/internal/core"
)

// SnapshotExporter writes snapshot rows for one account. Rows are keyed by
// date: an existing row for a date is overwritten, new dates are appended.
type SnapshotExporter interface {
	ExportSnapshots(ctx context.Context, account core.Account, snapshots []core.Snapshot) (ref string, err error)
}

// Header is the first row of every account tab.
var Header = []string{"Date", "Balance", "Inflow", "Outflow", "Refund", "Records"}

// Row renders a snapshot in Header column order.
func Row(s core.Snapshot) []string {
	return []string{
		s.Date.String(),
		core.FormatAmount(s.CurrentAmount),
		core.FormatAmount(s.PositiveMovement),
		core.FormatAmount(s.NegativeMovement),
		core.FormatAmount(s.RefundAmount),
		strconv.Itoa(len(s.RecordIDs)),
	}
}
