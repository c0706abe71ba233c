package memory

import (
	"context"
	"fmt"

	"saldi/internal/core"
)

// tx implements ledger.Store over the working copy of one transaction.
type tx struct {
	d *data
}

func (t *tx) LockAccount(context.Context, string) error { return nil }

func (t *tx) FindAccount(_ context.Context, id string) (core.Account, error) {
	return accountByID(t.d, id)
}

func (t *tx) FindCategory(_ context.Context, id string) (core.Category, error) {
	return categoryByID(t.d, id)
}

func (t *tx) FindSnapshotByID(_ context.Context, id string) (core.Snapshot, error) {
	return snapshotByID(t.d, id)
}

func (t *tx) FindSnapshotByDate(_ context.Context, accountID string, date core.Date) (core.Snapshot, bool, error) {
	for _, snap := range t.d.snapshots {
		if snap.AccountID == accountID && snap.Date.Equal(date) {
			return cloneSnapshot(snap), true, nil
		}
	}
	return core.Snapshot{}, false, nil
}

func (t *tx) FindLatestSnapshotBefore(_ context.Context, accountID string, date core.Date) (core.Snapshot, bool, error) {
	earlier := snapshotsWhere(t.d, func(snap core.Snapshot) bool {
		return snap.AccountID == accountID && snap.Date.Before(date)
	})
	if len(earlier) == 0 {
		return core.Snapshot{}, false, nil
	}
	return earlier[len(earlier)-1], true, nil
}

func (t *tx) FindSnapshotsAfter(_ context.Context, accountID string, date core.Date) ([]core.Snapshot, error) {
	return snapshotsWhere(t.d, func(snap core.Snapshot) bool {
		return snap.AccountID == accountID && snap.Date.After(date)
	}), nil
}

func (t *tx) ListSnapshots(_ context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	return snapshotsWhere(t.d, func(snap core.Snapshot) bool {
		return (accountID == "" || snap.AccountID == accountID) &&
			!snap.Date.Before(from) && !snap.Date.After(to)
	}), nil
}

func (t *tx) SaveSnapshot(_ context.Context, snap core.Snapshot) error {
	for _, other := range t.d.snapshots {
		if other.ID != snap.ID && other.AccountID == snap.AccountID && other.Date.Equal(snap.Date) {
			return fmt.Errorf("save snapshot: %s already has a snapshot for %s: %w",
				snap.AccountID, snap.Date, core.ErrConflict)
		}
	}
	t.d.snapshots[snap.ID] = cloneSnapshot(snap)
	return nil
}

func (t *tx) SaveSnapshots(ctx context.Context, snapshots []core.Snapshot) error {
	for _, snap := range snapshots {
		if err := t.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) FindRecordByID(_ context.Context, id string) (core.Record, error) {
	return recordByID(t.d, id)
}

func (t *tx) SaveRecord(_ context.Context, r core.Record) error {
	if _, ok := t.d.snapshots[r.SnapshotID]; !ok {
		return fmt.Errorf("save record: snapshot %s missing: %w", r.SnapshotID, core.ErrConflict)
	}
	t.d.records[r.ID] = r
	return nil
}

func (t *tx) DeleteRecord(_ context.Context, r core.Record) error {
	if _, ok := t.d.records[r.ID]; !ok {
		return fmt.Errorf("record %s: %w", r.ID, core.ErrNotFound)
	}
	delete(t.d.records, r.ID)
	return nil
}
