package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"saldi/internal/core"
	"saldi/internal/log"
)

// AccountStore is the account persistence used by AccountService.
type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, id string) (core.Account, error)
	FindAccountByName(ctx context.Context, name string) (core.Account, bool, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	RenameAccount(ctx context.Context, id, name string) error
	DeleteAccount(ctx context.Context, id string) error
	CountAccountRecords(ctx context.Context, accountID string) (int64, error)
}

type AccountService struct {
	store     AccountStore
	snapshots *SnapshotService
	newID     func() string
	now       func() time.Time
}

// NewAccountService builds the service. snapshots may be nil; when set, its
// cache is dropped for deleted accounts.
func NewAccountService(store AccountStore, snapshots *SnapshotService) *AccountService {
	return &AccountService{
		store:     store,
		snapshots: snapshots,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *AccountService) Create(ctx context.Context, name string) (core.Account, error) {
	a := core.Account{ID: s.newID(), Name: strings.TrimSpace(name), CreatedAt: s.now()}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.ensureNameFree(ctx, a.Name, ""); err != nil {
		return core.Account{}, err
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		log.FieldComponent, log.ComponentService,
		log.FieldAccountID, a.ID)
	return a, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (core.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) List(ctx context.Context) ([]core.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *AccountService) Rename(ctx context.Context, id, name string) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	a.Name = strings.TrimSpace(name)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.ensureNameFree(ctx, a.Name, id); err != nil {
		return core.Account{}, err
	}
	if err := s.store.RenameAccount(ctx, id, a.Name); err != nil {
		return core.Account{}, fmt.Errorf("rename account: %w", err)
	}
	return a, nil
}

// Delete removes an account with its categories and snapshots. An account
// that still has records is only deleted when deleteRecords is set.
func (s *AccountService) Delete(ctx context.Context, id string, deleteRecords bool) error {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return err
	}
	if !deleteRecords {
		n, err := s.store.CountAccountRecords(ctx, id)
		if err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("account has %d records: %w", n, core.ErrConflict)
		}
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if s.snapshots != nil {
		s.snapshots.Invalidate(id)
	}

	slog.InfoContext(ctx, "Account deleted",
		log.FieldComponent, log.ComponentService,
		log.FieldAccountID, id,
		"with_records", deleteRecords)
	return nil
}

func (s *AccountService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, ok, err := s.store.FindAccountByName(ctx, name)
	if err != nil {
		return fmt.Errorf("find account by name: %w", err)
	}
	if ok && existing.ID != selfID {
		return fmt.Errorf("account name %q already in use: %w", name, core.ErrConflict)
	}
	return nil
}
