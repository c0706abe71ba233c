package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// Repository persists accounts, categories, snapshots and records in SQLite
// or PostgreSQL.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
}

// SQLiteDSN enables foreign keys and makes every transaction take the write
// lock up front, which serializes ledger mutations across processes.
func SQLiteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, SQLiteDSN(dbPath))
}

func NewPostgresRepository(databaseURL string) (*Repository, error) {
	return open(DialectPostgres, databaseURL)
}

func open(dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(driverName(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		queries: New(db, dialect),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// WithinTx implements ledger.UnitOfWork.
func (r *Repository) WithinTx(ctx context.Context, fn func(ledger.Store) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed",
					log.FieldComponent, log.ComponentStorage,
					log.FieldError, rbErr)
			}
		}
	}()

	if err = fn(&txStore{q: r.queries.WithTx(tx)}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListSnapshots implements ledger.Reader.
func (r *Repository) ListSnapshots(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	snapshots, err := r.queries.ListSnapshotsBetween(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if err := attachRecordIDs(ctx, r.queries, snapshots, accountID, from, to); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *Repository) FindSnapshotByID(ctx context.Context, id string) (core.Snapshot, error) {
	return findSnapshotByID(ctx, r.queries, id)
}

func (r *Repository) ListRecords(ctx context.Context, accountID string, from, to core.Date) ([]core.Record, error) {
	records, err := r.queries.ListRecordsBetween(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (r *Repository) FindRecordByID(ctx context.Context, id string) (core.Record, error) {
	rec, err := r.queries.GetRecord(ctx, id)
	if err != nil {
		return core.Record{}, notFound("record", id, err)
	}
	return rec, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) error {
	if err := r.queries.CreateAccount(ctx, a); err != nil {
		return mapWriteError("create account", err)
	}
	slog.InfoContext(ctx, "Account saved",
		log.FieldComponent, log.ComponentStorage,
		log.FieldAccountID, a.ID)
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	a, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, notFound("account", id, err)
	}
	return a, nil
}

func (r *Repository) FindAccountByName(ctx context.Context, name string) (core.Account, bool, error) {
	a, err := r.queries.GetAccountByName(ctx, name)
	return found(a, err, "find account by name")
}

func (r *Repository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	items, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return items, nil
}

func (r *Repository) RenameAccount(ctx context.Context, id, name string) error {
	n, err := r.queries.RenameAccount(ctx, id, name)
	if err != nil {
		return mapWriteError("rename account", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// DeleteAccount removes the account together with its categories,
// snapshots and records.
func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	n, err := r.queries.DeleteAccount(ctx, id)
	if err != nil {
		return mapWriteError("delete account", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CountAccountRecords(ctx context.Context, accountID string) (int64, error) {
	n, err := r.queries.CountRecordsByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("count account records: %w", err)
	}
	return n, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	if err := r.queries.CreateCategory(ctx, c); err != nil {
		return mapWriteError("create category", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, notFound("category", id, err)
	}
	return c, nil
}

func (r *Repository) FindCategoryByName(ctx context.Context, accountID, name string) (core.Category, bool, error) {
	c, err := r.queries.GetCategoryByName(ctx, accountID, name)
	return found(c, err, "find category by name")
}

func (r *Repository) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	items, err := r.queries.ListCategories(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return items, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	n, err := r.queries.UpdateCategory(ctx, c)
	if err != nil {
		return mapWriteError("update category", err)
	}
	if n == 0 {
		if _, err := r.GetCategory(ctx, c.ID); err != nil {
			return err
		}
		return fmt.Errorf("category %s tags records and cannot change account: %w", c.ID, core.ErrConflict)
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return mapWriteError("delete category", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CountCategoryRecords(ctx context.Context, categoryID string) (int64, error) {
	n, err := r.queries.CountRecordsByCategory(ctx, categoryID)
	if err != nil {
		return 0, fmt.Errorf("count category records: %w", err)
	}
	return n, nil
}

func findSnapshotByID(ctx context.Context, q *Queries, id string) (core.Snapshot, error) {
	s, err := q.GetSnapshot(ctx, id)
	if err != nil {
		return core.Snapshot{}, notFound("snapshot", id, err)
	}
	if s.RecordIDs, err = q.ListRecordIDsBySnapshot(ctx, s.ID); err != nil {
		return core.Snapshot{}, fmt.Errorf("list snapshot records: %w", err)
	}
	return s, nil
}

// attachRecordIDs fills RecordIDs from the records table. A record's day
// always equals the day of its snapshot, so the same range selects both.
func attachRecordIDs(ctx context.Context, q *Queries, snapshots []core.Snapshot, accountID string, from, to core.Date) error {
	if len(snapshots) == 0 {
		return nil
	}
	pairs, err := q.ListRecordIDsBetween(ctx, accountID, from, to)
	if err != nil {
		return fmt.Errorf("list snapshot records: %w", err)
	}
	bySnapshot := make(map[string][]string, len(snapshots))
	for _, p := range pairs {
		bySnapshot[p.SnapshotID] = append(bySnapshot[p.SnapshotID], p.RecordID)
	}
	for i := range snapshots {
		snapshots[i].RecordIDs = bySnapshot[snapshots[i].ID]
	}
	return nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

func found[T any](v T, err error, op string) (T, bool, error) {
	var zero T
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%s: %w", op, err)
	}
	return v, true, nil
}

// mapWriteError turns constraint violations into core.ErrConflict.
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%s: %s: %w", op, pqErr.Message, core.ErrConflict)
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %s: %w", op, strings.TrimSpace(liteErr.Error()), core.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
