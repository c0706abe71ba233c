package services

import (
	"time"

	"saldi/internal/events"
	"saldi/internal/ledger"
)

// Store is the persistence the full service set runs on.
type Store interface {
	ledger.UnitOfWork
	Reader
	AccountStore
	CategoryStore
}

// Set groups the application services sharing one store and one snapshot
// cache.
type Set struct {
	Accounts   *AccountService
	Categories *CategoryService
	Records    *RecordService
	Snapshots  *SnapshotService
}

// Wire assembles the services over store. Balance changes go to publisher.
func Wire(store Store, publisher events.Publisher, cacheSize int, cacheTTL time.Duration) *Set {
	snaps := NewSnapshotService(store, cacheSize, cacheTTL)
	coord := ledger.NewCoordinator(store, ledger.NewAccountLocks())
	return &Set{
		Accounts:   NewAccountService(store, snaps),
		Categories: NewCategoryService(store),
		Records:    NewRecordService(coord, store, snaps, publisher),
		Snapshots:  snaps,
	}
}
