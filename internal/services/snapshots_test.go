package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"saldi/internal/core"
	"saldi/internal/events"
	"saldi/internal/ledger"
	"saldi/internal/storage/memory"
)

// pausingReader lets a test hold a snapshot read after it has loaded its
// rows and before it returns them.
type pausingReader struct {
	*memory.Store
	loaded  chan struct{}
	release chan struct{}
}

func (r *pausingReader) ListSnapshots(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	list, err := r.Store.ListSnapshots(ctx, accountID, from, to)
	if r.loaded != nil {
		close(r.loaded)
		<-r.release
		r.loaded = nil
	}
	return list, err
}

func TestSnapshotService_ReadRacingCommitIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reader := &pausingReader{Store: store}
	snaps := NewSnapshotService(reader, 100, time.Hour)
	accounts := NewAccountService(store, snaps)
	categories := NewCategoryService(store)
	records := NewRecordService(ledger.NewCoordinator(store, nil), reader, snaps, events.Nop{})

	a, err := accounts.Create(ctx, "Main")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	c, err := categories.Create(ctx, a.ID, "General")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := records.Create(ctx, movement(a, c, 1, "-50")); err != nil {
		t.Fatalf("create: %v", err)
	}

	reader.loaded = make(chan struct{})
	reader.release = make(chan struct{})
	loaded := reader.loaded

	stale := make(chan []core.Snapshot, 1)
	go func() {
		list, err := snaps.List(ctx, a.ID, nil, nil)
		if err != nil {
			t.Errorf("List: %v", err)
		}
		stale <- list
	}()

	<-loaded
	if _, err := records.Create(ctx, movement(a, c, 2, "200")); err != nil {
		t.Fatalf("create during read: %v", err)
	}
	close(reader.release)
	if got := <-stale; len(got) != 1 {
		t.Fatalf("in-flight read saw %d snapshots, want the 1 it loaded", len(got))
	}

	got, err := snaps.List(ctx, a.ID, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read after commit returned %d snapshots, want 2", len(got))
	}
	if got[1].CurrentAmount.String() != "150" {
		t.Errorf("day 2 balance = %s, want 150", got[1].CurrentAmount)
	}
}

func TestListsRejectUnknownAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.account(t, "Main")

	if _, err := f.snapshots.List(ctx, "no-such-account", nil, nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("snapshots: expected ErrNotFound, got %v", err)
	}
	if _, err := f.records.List(ctx, "no-such-account", nil, nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("records: expected ErrNotFound, got %v", err)
	}
	if _, err := f.categories.List(ctx, "no-such-account"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("categories: expected ErrNotFound, got %v", err)
	}

	if _, err := f.snapshots.List(ctx, "", nil, nil); err != nil {
		t.Errorf("unfiltered list should succeed: %v", err)
	}
}

func TestCategoryService_MoveRejectedAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, c := f.account(t, "Main")
	other, _ := f.account(t, "Other")
	if _, err := f.records.Create(ctx, movement(a, c, 1, "-5")); err != nil {
		t.Fatalf("create: %v", err)
	}

	// The store refuses the move even when the service pre-check is bypassed.
	err := f.store.UpdateCategory(ctx, core.Category{ID: c.ID, AccountID: other.ID, Name: c.Name})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := f.categories.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountID != a.ID {
		t.Errorf("category moved to %s", got.AccountID)
	}
}
