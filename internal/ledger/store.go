// Package ledger maintains the per-account chain of balance snapshots.
//
// The Coordinator is the only place where movement records are created,
// changed or removed; every mutation runs inside one unit of work and ends
// with a forward propagation by the Recalculator from the earliest snapshot
// it touched.
package ledger

import (
	"context"

	"saldi/internal/core"
)

// Store is the transactional view of persistence used by the Coordinator.
// Lookups that may legitimately miss return a found flag; lookups by id
// return an error wrapping core.ErrNotFound.
type Store interface {
	// LockAccount serializes writers of one account until the transaction ends.
	LockAccount(ctx context.Context, accountID string) error

	FindAccount(ctx context.Context, id string) (core.Account, error)
	FindCategory(ctx context.Context, id string) (core.Category, error)

	FindSnapshotByID(ctx context.Context, id string) (core.Snapshot, error)
	FindSnapshotByDate(ctx context.Context, accountID string, date core.Date) (core.Snapshot, bool, error)
	FindLatestSnapshotBefore(ctx context.Context, accountID string, date core.Date) (core.Snapshot, bool, error)
	// FindSnapshotsAfter returns snapshots strictly later than date, ascending.
	FindSnapshotsAfter(ctx context.Context, accountID string, date core.Date) ([]core.Snapshot, error)
	// ListSnapshots returns snapshots within [from, to], ascending.
	ListSnapshots(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error)
	SaveSnapshot(ctx context.Context, s core.Snapshot) error
	SaveSnapshots(ctx context.Context, snapshots []core.Snapshot) error

	FindRecordByID(ctx context.Context, id string) (core.Record, error)
	SaveRecord(ctx context.Context, r core.Record) error
	DeleteRecord(ctx context.Context, r core.Record) error
}

// UnitOfWork runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// Reader is the read-only query surface. An empty account id matches every
// account.
type Reader interface {
	ListSnapshots(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error)
	FindSnapshotByID(ctx context.Context, id string) (core.Snapshot, error)
	ListRecords(ctx context.Context, accountID string, from, to core.Date) ([]core.Record, error)
	FindRecordByID(ctx context.Context, id string) (core.Record, error)
}
