package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saldi/internal/core"
	"saldi/internal/log"
)

// Outcome reports what a mutation changed, for event publication after
// commit.
type Outcome struct {
	Record core.Record
	// Previous is the record as it was before an update or delete.
	Previous *core.Record
	// Anchors are the snapshots propagation started from, one per account
	// touched.
	Anchors []core.Snapshot
	// Propagated are the later snapshots whose balance was rewritten.
	Propagated []core.Snapshot
}

// AccountIDs returns the accounts touched by the mutation.
func (o Outcome) AccountIDs() []string {
	ids := make([]string, 0, len(o.Anchors))
	for _, a := range o.Anchors {
		ids = append(ids, a.AccountID)
	}
	return ids
}

// Coordinator creates, updates and deletes movement records and keeps the
// snapshot chain of every affected account consistent.
type Coordinator struct {
	uow    UnitOfWork
	locks  *AccountLocks
	recalc Recalculator
	newID  func() string
	now    func() time.Time
}

func NewCoordinator(uow UnitOfWork, locks *AccountLocks) *Coordinator {
	if locks == nil {
		locks = NewAccountLocks()
	}
	return &Coordinator{
		uow:   uow,
		locks: locks,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create files a new movement against the snapshot of its date, creating the
// snapshot if needed, and propagates the change forward.
func (c *Coordinator) Create(ctx context.Context, m core.Movement) (Outcome, error) {
	unlock := c.locks.Lock(m.AccountID)
	defer unlock()

	var out Outcome
	err := c.uow.WithinTx(ctx, func(tx Store) error {
		if err := tx.LockAccount(ctx, m.AccountID); err != nil {
			return err
		}
		if err := c.resolveRefs(ctx, tx, m); err != nil {
			return err
		}

		snap, err := c.snapshotFor(ctx, tx, m.AccountID, m.Date)
		if err != nil {
			return err
		}

		now := c.now()
		rec := core.Record{
			ID:         c.newID(),
			AccountID:  m.AccountID,
			SnapshotID: snap.ID,
			CreatedAt:  now,
		}
		rec = withMovement(rec, m, now)

		snap = snap.ApplyMovement(rec)
		if err := tx.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		propagated, err := c.recalc.Propagate(ctx, tx, snap)
		if err != nil {
			return err
		}
		if err := tx.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}

		out = Outcome{Record: rec, Anchors: []core.Snapshot{snap}, Propagated: propagated}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("create record: %w", err)
	}

	slog.DebugContext(ctx, "Record created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldRecordID, out.Record.ID,
		log.FieldAccountID, out.Record.AccountID,
		log.FieldAnchorDate, out.Record.Date.String(),
		"propagated", len(out.Propagated))
	return out, nil
}

// Update replaces the content of a record. When the date or account
// changes the record moves to the snapshot of its new date and both chains
// are propagated.
func (c *Coordinator) Update(ctx context.Context, recordID string, m core.Movement) (Outcome, error) {
	current, err := c.peekRecord(ctx, recordID)
	if err != nil {
		return Outcome{}, fmt.Errorf("update record: %w", err)
	}

	unlock := c.locks.Lock(current.AccountID, m.AccountID)
	defer unlock()

	var out Outcome
	err = c.uow.WithinTx(ctx, func(tx Store) error {
		for _, id := range lockOrder(current.AccountID, m.AccountID) {
			if err := tx.LockAccount(ctx, id); err != nil {
				return err
			}
		}

		prev, err := tx.FindRecordByID(ctx, recordID)
		if err != nil {
			return err
		}
		if prev.AccountID != current.AccountID {
			return fmt.Errorf("record %s moved to another account concurrently: %w", recordID, core.ErrConflict)
		}
		if err := c.resolveRefs(ctx, tx, m); err != nil {
			return err
		}

		oldSnap, err := tx.FindSnapshotByID(ctx, prev.SnapshotID)
		if err != nil {
			return fmt.Errorf("load snapshot of record: %w", err)
		}
		oldSnap, err = oldSnap.RemoveMovement(prev)
		if err != nil {
			return err
		}

		rec := withMovement(prev, m, c.now())

		if prev.AccountID == rec.AccountID && prev.Date.Equal(rec.Date) {
			snap := oldSnap.ApplyMovement(rec)
			if err := tx.SaveSnapshot(ctx, snap); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
			propagated, err := c.recalc.Propagate(ctx, tx, snap)
			if err != nil {
				return err
			}
			if err := tx.SaveRecord(ctx, rec); err != nil {
				return fmt.Errorf("save record: %w", err)
			}
			out = Outcome{Record: rec, Previous: &prev, Anchors: []core.Snapshot{snap}, Propagated: propagated}
			return nil
		}

		if err := tx.SaveSnapshot(ctx, oldSnap); err != nil {
			return fmt.Errorf("save previous snapshot: %w", err)
		}
		newSnap, err := c.snapshotFor(ctx, tx, rec.AccountID, rec.Date)
		if err != nil {
			return err
		}
		rec.SnapshotID = newSnap.ID
		newSnap = newSnap.ApplyMovement(rec)
		if err := tx.SaveSnapshot(ctx, newSnap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		var anchors []core.Snapshot
		if prev.AccountID == rec.AccountID {
			// One chain: the earlier snapshot covers the later one.
			anchor := newSnap
			if oldSnap.Date.Before(newSnap.Date) {
				anchor = oldSnap
			}
			anchors = []core.Snapshot{anchor}
		} else {
			anchors = []core.Snapshot{oldSnap, newSnap}
		}

		var propagated []core.Snapshot
		for _, anchor := range anchors {
			changed, err := c.recalc.Propagate(ctx, tx, anchor)
			if err != nil {
				return err
			}
			propagated = append(propagated, changed...)
		}
		if err := tx.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("save record: %w", err)
		}

		out = Outcome{Record: rec, Previous: &prev, Anchors: anchors, Propagated: propagated}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("update record: %w", err)
	}

	slog.DebugContext(ctx, "Record updated",
		log.FieldComponent, log.ComponentLedger,
		log.FieldRecordID, recordID,
		log.FieldAccountID, out.Record.AccountID,
		"anchors", len(out.Anchors),
		"propagated", len(out.Propagated))
	return out, nil
}

// Delete removes a record from its snapshot and propagates the change. The
// snapshot is kept even when it becomes empty.
func (c *Coordinator) Delete(ctx context.Context, recordID string) (Outcome, error) {
	current, err := c.peekRecord(ctx, recordID)
	if err != nil {
		return Outcome{}, fmt.Errorf("delete record: %w", err)
	}

	unlock := c.locks.Lock(current.AccountID)
	defer unlock()

	var out Outcome
	err = c.uow.WithinTx(ctx, func(tx Store) error {
		if err := tx.LockAccount(ctx, current.AccountID); err != nil {
			return err
		}
		rec, err := tx.FindRecordByID(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.AccountID != current.AccountID {
			return fmt.Errorf("record %s moved to another account concurrently: %w", recordID, core.ErrConflict)
		}

		snap, err := tx.FindSnapshotByID(ctx, rec.SnapshotID)
		if err != nil {
			return fmt.Errorf("load snapshot of record: %w", err)
		}
		snap, err = snap.RemoveMovement(rec)
		if err != nil {
			return err
		}
		if err := tx.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		propagated, err := c.recalc.Propagate(ctx, tx, snap)
		if err != nil {
			return err
		}
		if err := tx.DeleteRecord(ctx, rec); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}

		out = Outcome{Record: rec, Previous: &rec, Anchors: []core.Snapshot{snap}, Propagated: propagated}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("delete record: %w", err)
	}

	slog.DebugContext(ctx, "Record deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldRecordID, recordID,
		log.FieldAccountID, out.Record.AccountID,
		"propagated", len(out.Propagated))
	return out, nil
}

// Rebuild recomputes every balance of an account from zero under the
// account lock.
func (c *Coordinator) Rebuild(ctx context.Context, accountID string) ([]core.Snapshot, error) {
	unlock := c.locks.Lock(accountID)
	defer unlock()

	var changed []core.Snapshot
	err := c.uow.WithinTx(ctx, func(tx Store) error {
		if err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		if _, err := tx.FindAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		changed, err = c.recalc.Rebuild(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild account %s: %w", accountID, err)
	}
	return changed, nil
}

// snapshotFor returns the snapshot of date, or a new one seeded with the
// balance of the nearest earlier snapshot. New snapshots are not saved.
func (c *Coordinator) snapshotFor(ctx context.Context, tx Store, accountID string, date core.Date) (core.Snapshot, error) {
	snap, ok, err := tx.FindSnapshotByDate(ctx, accountID, date)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("find snapshot for %s: %w", date, err)
	}
	if ok {
		return snap, nil
	}

	prev, ok, err := tx.FindLatestSnapshotBefore(ctx, accountID, date)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("find snapshot before %s: %w", date, err)
	}
	opening := decimal.Zero
	if ok {
		opening = prev.CurrentAmount
	}
	return core.SeedSnapshot(c.newID(), accountID, date, opening), nil
}

// resolveRefs checks inside the transaction that the account exists and
// that the category belongs to it.
func (c *Coordinator) resolveRefs(ctx context.Context, tx Store, m core.Movement) error {
	if _, err := tx.FindAccount(ctx, m.AccountID); err != nil {
		return fmt.Errorf("account %s: %w", m.AccountID, err)
	}
	cat, err := tx.FindCategory(ctx, m.CategoryID)
	if err != nil {
		return fmt.Errorf("category %s: %w", m.CategoryID, err)
	}
	if cat.AccountID != m.AccountID {
		return fmt.Errorf("category %s belongs to another account: %w", cat.ID, core.ErrForbidden)
	}
	return nil
}

// peekRecord reads a record outside any lock to learn which accounts to
// lock. The result is re-checked inside the transaction.
func (c *Coordinator) peekRecord(ctx context.Context, id string) (core.Record, error) {
	var rec core.Record
	err := c.uow.WithinTx(ctx, func(tx Store) error {
		var err error
		rec, err = tx.FindRecordByID(ctx, id)
		return err
	})
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return core.Record{}, fmt.Errorf("load record: %w", err)
	}
	return rec, err
}

func withMovement(r core.Record, m core.Movement, now time.Time) core.Record {
	r.AccountID = m.AccountID
	r.CategoryID = m.CategoryID
	r.Date = m.Date
	r.MovementAmount = m.Amount
	r.RefundAmount = m.Refund
	r.Description = m.Description
	r.UpdatedAt = now
	return r
}

func lockOrder(a, b string) []string {
	switch {
	case a == b:
		return []string{a}
	case a < b:
		return []string{a, b}
	default:
		return []string{b, a}
	}
}
