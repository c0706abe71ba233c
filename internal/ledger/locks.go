package ledger

import (
	"slices"
	"sync"
)

// AccountLocks hands out one mutex per account id so that mutations on the
// same account run one at a time while different accounts proceed in
// parallel. Entries are reference counted and dropped once no caller holds
// or waits for them.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	sync.Mutex
	refs int
}

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*accountLock)}
}

func (l *AccountLocks) acquire(accountID string) *accountLock {
	l.mu.Lock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &accountLock{}
		l.locks[accountID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return m
}

func (l *AccountLocks) release(accountID string, m *accountLock) {
	m.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(l.locks, accountID)
	}
}

// Lock acquires the locks of every given account in sorted order and
// returns the function releasing them. Duplicate ids are locked once.
func (l *AccountLocks) Lock(accountIDs ...string) (unlock func()) {
	ids := slices.Clone(accountIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*accountLock, 0, len(ids))
	for _, id := range ids {
		held = append(held, l.acquire(id))
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(ids[i], held[i])
		}
	}
}
