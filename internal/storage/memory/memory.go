// Package memory provides an in-memory, transactional implementation of the
// ledger and service stores. Transactions work on a copy of the data and
// swap it in on commit.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"saldi/internal/core"
	"saldi/internal/ledger"
)

type data struct {
	accounts   map[string]core.Account
	categories map[string]core.Category
	snapshots  map[string]core.Snapshot
	records    map[string]core.Record
}

func (d *data) clone() *data {
	return &data{
		accounts:   maps.Clone(d.accounts),
		categories: maps.Clone(d.categories),
		snapshots:  maps.Clone(d.snapshots),
		records:    maps.Clone(d.records),
	}
}

// Store is safe for concurrent use. A single mutex serializes transactions,
// so LockAccount has nothing left to do.
type Store struct {
	mu sync.Mutex
	d  *data
}

func NewStore() *Store {
	return &Store{d: &data{
		accounts:   make(map[string]core.Account),
		categories: make(map[string]core.Category),
		snapshots:  make(map[string]core.Snapshot),
		records:    make(map[string]core.Record),
	}}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// WithinTx implements ledger.UnitOfWork.
func (s *Store) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.d.clone()
	if err := fn(&tx{d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d = work
	return nil
}

func (s *Store) read() *data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d
}

func (s *Store) write(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.d.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.d = work
	return nil
}

// ListSnapshots implements ledger.Reader.
func (s *Store) ListSnapshots(_ context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	return snapshotsWhere(s.read(), func(snap core.Snapshot) bool {
		return (accountID == "" || snap.AccountID == accountID) &&
			!snap.Date.Before(from) && !snap.Date.After(to)
	}), nil
}

func (s *Store) FindSnapshotByID(_ context.Context, id string) (core.Snapshot, error) {
	return snapshotByID(s.read(), id)
}

func (s *Store) ListRecords(_ context.Context, accountID string, from, to core.Date) ([]core.Record, error) {
	var out []core.Record
	for _, r := range s.read().records {
		if (accountID == "" || r.AccountID == accountID) && !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b core.Record) int {
		return cmp.Or(
			a.Date.Compare(b.Date.Time),
			a.CreatedAt.Compare(b.CreatedAt),
			strings.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (s *Store) FindRecordByID(_ context.Context, id string) (core.Record, error) {
	return recordByID(s.read(), id)
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	return s.write(func(d *data) error {
		if _, ok := d.accounts[a.ID]; ok {
			return fmt.Errorf("create account: duplicate id %s: %w", a.ID, core.ErrConflict)
		}
		for _, other := range d.accounts {
			if other.Name == a.Name {
				return fmt.Errorf("create account: duplicate name %q: %w", a.Name, core.ErrConflict)
			}
		}
		d.accounts[a.ID] = a
		return nil
	})
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	return accountByID(s.read(), id)
}

func (s *Store) FindAccountByName(_ context.Context, name string) (core.Account, bool, error) {
	for _, a := range s.read().accounts {
		if a.Name == name {
			return a, true, nil
		}
	}
	return core.Account{}, false, nil
}

func (s *Store) ListAccounts(context.Context) ([]core.Account, error) {
	out := slices.Collect(maps.Values(s.read().accounts))
	slices.SortFunc(out, func(a, b core.Account) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) RenameAccount(_ context.Context, id, name string) error {
	return s.write(func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
		}
		for _, other := range d.accounts {
			if other.ID != id && other.Name == name {
				return fmt.Errorf("rename account: duplicate name %q: %w", name, core.ErrConflict)
			}
		}
		a.Name = name
		d.accounts[id] = a
		return nil
	})
}

// DeleteAccount removes the account together with its categories,
// snapshots and records.
func (s *Store) DeleteAccount(_ context.Context, id string) error {
	return s.write(func(d *data) error {
		if _, ok := d.accounts[id]; !ok {
			return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
		}
		delete(d.accounts, id)
		maps.DeleteFunc(d.categories, func(_ string, c core.Category) bool { return c.AccountID == id })
		maps.DeleteFunc(d.snapshots, func(_ string, s core.Snapshot) bool { return s.AccountID == id })
		maps.DeleteFunc(d.records, func(_ string, r core.Record) bool { return r.AccountID == id })
		return nil
	})
}

func (s *Store) CountAccountRecords(_ context.Context, accountID string) (int64, error) {
	var n int64
	for _, r := range s.read().records {
		if r.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	return s.write(func(d *data) error {
		if _, ok := d.accounts[c.AccountID]; !ok {
			return fmt.Errorf("create category: account %s missing: %w", c.AccountID, core.ErrConflict)
		}
		if err := uniqueCategory(d, c); err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		d.categories[c.ID] = c
		return nil
	})
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	return categoryByID(s.read(), id)
}

func (s *Store) FindCategoryByName(_ context.Context, accountID, name string) (core.Category, bool, error) {
	for _, c := range s.read().categories {
		if c.AccountID == accountID && c.Name == name {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (s *Store) ListCategories(_ context.Context, accountID string) ([]core.Category, error) {
	var out []core.Category
	for _, c := range s.read().categories {
		if accountID == "" || c.AccountID == accountID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.Category) int {
		return cmp.Or(strings.Compare(a.AccountID, b.AccountID), strings.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	return s.write(func(d *data) error {
		current, ok := d.categories[c.ID]
		if !ok {
			return fmt.Errorf("category %s: %w", c.ID, core.ErrNotFound)
		}
		if current.AccountID != c.AccountID {
			for _, r := range d.records {
				if r.CategoryID == c.ID {
					return fmt.Errorf("category %s tags records and cannot change account: %w", c.ID, core.ErrConflict)
				}
			}
		}
		if err := uniqueCategory(d, c); err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		d.categories[c.ID] = c
		return nil
	})
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	return s.write(func(d *data) error {
		if _, ok := d.categories[id]; !ok {
			return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
		}
		for _, r := range d.records {
			if r.CategoryID == id {
				return fmt.Errorf("delete category: still referenced by record %s: %w", r.ID, core.ErrConflict)
			}
		}
		delete(d.categories, id)
		return nil
	})
}

func (s *Store) CountCategoryRecords(_ context.Context, categoryID string) (int64, error) {
	var n int64
	for _, r := range s.read().records {
		if r.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func uniqueCategory(d *data, c core.Category) error {
	for _, other := range d.categories {
		if other.ID != c.ID && other.AccountID == c.AccountID && other.Name == c.Name {
			return fmt.Errorf("duplicate category name %q: %w", c.Name, core.ErrConflict)
		}
	}
	return nil
}

func accountByID(d *data, id string) (core.Account, error) {
	a, ok := d.accounts[id]
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func categoryByID(d *data, id string) (core.Category, error) {
	c, ok := d.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func recordByID(d *data, id string) (core.Record, error) {
	r, ok := d.records[id]
	if !ok {
		return core.Record{}, fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	return r, nil
}

func snapshotByID(d *data, id string) (core.Snapshot, error) {
	snap, ok := d.snapshots[id]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, core.ErrNotFound)
	}
	return cloneSnapshot(snap), nil
}

// snapshotsWhere returns matching snapshots ordered by account and date.
func snapshotsWhere(d *data, keep func(core.Snapshot) bool) []core.Snapshot {
	var out []core.Snapshot
	for _, snap := range d.snapshots {
		if keep(snap) {
			out = append(out, cloneSnapshot(snap))
		}
	}
	slices.SortFunc(out, func(a, b core.Snapshot) int {
		return cmp.Or(strings.Compare(a.AccountID, b.AccountID), a.Date.Compare(b.Date.Time))
	})
	return out
}

func cloneSnapshot(s core.Snapshot) core.Snapshot {
	s.RecordIDs = slices.Clone(s.RecordIDs)
	return s
}
