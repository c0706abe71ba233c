package storage

import (
	"context"
	"fmt"

	"saldi/internal/core"
)

// txStore implements ledger.Store on top of one database transaction.
type txStore struct {
	q *Queries
}

func (s *txStore) LockAccount(ctx context.Context, accountID string) error {
	if err := s.q.LockAccount(ctx, accountID); err != nil {
		return fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return nil
}

func (s *txStore) FindAccount(ctx context.Context, id string) (core.Account, error) {
	a, err := s.q.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, notFound("account", id, err)
	}
	return a, nil
}

func (s *txStore) FindCategory(ctx context.Context, id string) (core.Category, error) {
	c, err := s.q.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, notFound("category", id, err)
	}
	return c, nil
}

func (s *txStore) FindSnapshotByID(ctx context.Context, id string) (core.Snapshot, error) {
	return findSnapshotByID(ctx, s.q, id)
}

func (s *txStore) FindSnapshotByDate(ctx context.Context, accountID string, date core.Date) (core.Snapshot, bool, error) {
	snap, err := s.q.GetSnapshotByDate(ctx, accountID, date)
	return s.withRecordIDs(ctx, snap, err, "find snapshot by date")
}

func (s *txStore) FindLatestSnapshotBefore(ctx context.Context, accountID string, date core.Date) (core.Snapshot, bool, error) {
	snap, err := s.q.GetLatestSnapshotBefore(ctx, accountID, date)
	return s.withRecordIDs(ctx, snap, err, "find snapshot before date")
}

func (s *txStore) withRecordIDs(ctx context.Context, snap core.Snapshot, err error, op string) (core.Snapshot, bool, error) {
	snap, ok, err := found(snap, err, op)
	if !ok || err != nil {
		return snap, ok, err
	}
	if snap.RecordIDs, err = s.q.ListRecordIDsBySnapshot(ctx, snap.ID); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("list snapshot records: %w", err)
	}
	return snap, true, nil
}

func (s *txStore) FindSnapshotsAfter(ctx context.Context, accountID string, date core.Date) ([]core.Snapshot, error) {
	snapshots, err := s.q.ListSnapshotsAfter(ctx, accountID, date)
	if err != nil {
		return nil, fmt.Errorf("list snapshots after %s: %w", date, err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	last := snapshots[len(snapshots)-1].Date
	if err := attachRecordIDs(ctx, s.q, snapshots, accountID, snapshots[0].Date, last); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *txStore) ListSnapshots(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	snapshots, err := s.q.ListSnapshotsBetween(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if err := attachRecordIDs(ctx, s.q, snapshots, accountID, from, to); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (s *txStore) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	if err := s.q.UpsertSnapshot(ctx, snap); err != nil {
		return mapWriteError("save snapshot", err)
	}
	return nil
}

func (s *txStore) SaveSnapshots(ctx context.Context, snapshots []core.Snapshot) error {
	for _, snap := range snapshots {
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

func (s *txStore) FindRecordByID(ctx context.Context, id string) (core.Record, error) {
	rec, err := s.q.GetRecord(ctx, id)
	if err != nil {
		return core.Record{}, notFound("record", id, err)
	}
	return rec, nil
}

func (s *txStore) SaveRecord(ctx context.Context, r core.Record) error {
	if err := s.q.UpsertRecord(ctx, r); err != nil {
		return mapWriteError("save record", err)
	}
	return nil
}

func (s *txStore) DeleteRecord(ctx context.Context, r core.Record) error {
	n, err := s.q.DeleteRecord(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", r.ID, core.ErrNotFound)
	}
	return nil
}
