package services

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"saldi/internal/cache"
	"saldi/internal/core"
	"saldi/internal/ledger"
)

const snapshotKeyPrefix = "snapshots:"

// Reader is the read side shared by the snapshot and record services.
type Reader interface {
	ledger.Reader
	GetAccount(ctx context.Context, id string) (core.Account, error)
}

// SnapshotService serves snapshot reads through an LRU cache. Concurrent
// misses for the same range share one store query.
//
// Every Invalidate bumps generation. A read only fills the cache when no
// invalidation happened while it ran, and reads started after an
// invalidation never join a flight started before it. Writes made by other
// processes are only picked up once entries expire.
type SnapshotService struct {
	reader     Reader
	cache      *cache.LRUCache[[]core.Snapshot]
	group      singleflight.Group
	generation atomic.Uint64
}

func NewSnapshotService(reader Reader, size int, ttl time.Duration) *SnapshotService {
	return &SnapshotService{
		reader: reader,
		cache:  cache.NewLRUCache[[]core.Snapshot](size, ttl),
	}
}

// Cache exposes the cache for registration with a cache.Manager.
func (s *SnapshotService) Cache() *cache.LRUCache[[]core.Snapshot] {
	return s.cache
}

// List returns snapshots in [from, to] ordered by account then date. Nil
// bounds are open; an empty accountID spans every account, an unknown one
// is ErrNotFound.
func (s *SnapshotService) List(ctx context.Context, accountID string, from, to *core.Date) ([]core.Snapshot, error) {
	start, end, err := core.ValidateRange(from, to)
	if err != nil {
		return nil, err
	}
	if err := requireAccount(ctx, s.reader, accountID); err != nil {
		return nil, err
	}

	key := snapshotKey(accountID, start, end)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	gen := s.generation.Load()
	v, err, _ := s.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		list, err := s.reader.ListSnapshots(ctx, accountID, start, end)
		if err != nil {
			return nil, err
		}
		if s.generation.Load() == gen {
			s.cache.Set(key, list)
		}
		return list, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return v.([]core.Snapshot), nil
}

func (s *SnapshotService) Get(ctx context.Context, id string) (core.Snapshot, error) {
	return s.reader.FindSnapshotByID(ctx, id)
}

// Invalidate drops cached ranges of the given accounts and every
// all-accounts range.
func (s *SnapshotService) Invalidate(accountIDs ...string) {
	s.generation.Add(1)
	for _, id := range accountIDs {
		s.cache.DeletePrefix(snapshotKeyPrefix + id + ":")
	}
	s.cache.DeletePrefix(snapshotKeyPrefix + ":")
}

// Verify checks the balance chain of accountID, or of every account when it
// is empty. It bypasses the cache. The result maps account ids to their
// violations; consistent accounts are absent.
func (s *SnapshotService) Verify(ctx context.Context, accountID string) (map[string][]ledger.Violation, error) {
	all, err := s.reader.ListSnapshots(ctx, accountID, core.MinDate, core.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make(map[string][]ledger.Violation)
	for start := 0; start < len(all); {
		end := start
		for end < len(all) && all[end].AccountID == all[start].AccountID {
			end++
		}
		if v := ledger.Verify(all[start:end]); len(v) > 0 {
			out[all[start].AccountID] = v
		}
		start = end
	}
	return out, nil
}

func snapshotKey(accountID string, from, to core.Date) string {
	return snapshotKeyPrefix + accountID + ":" + from.String() + ":" + to.String()
}

// requireAccount resolves accountID when a filter is set.
func requireAccount(ctx context.Context, r Reader, accountID string) error {
	if accountID == "" {
		return nil
	}
	if _, err := r.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return nil
}
