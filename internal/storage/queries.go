package storage

import (
	"context"

	"saldi/internal/core"
)

const accountColumns = `id, name, created_at`

const createAccount = `INSERT INTO accounts (id, name, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.exec(ctx, createAccount, a.ID, a.Name, a.CreatedAt)
	return err
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	return scanAccount(q.queryRow(ctx, getAccount, id))
}

const getAccountByName = `SELECT ` + accountColumns + ` FROM accounts WHERE name = ?`

func (q *Queries) GetAccountByName(ctx context.Context, name string) (core.Account, error) {
	return scanAccount(q.queryRow(ctx, getAccountByName, name))
}

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY name`

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.query(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const renameAccount = `UPDATE accounts SET name = ? WHERE id = ?`

func (q *Queries) RenameAccount(ctx context.Context, id, name string) (int64, error) {
	res, err := q.exec(ctx, renameAccount, name, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id string) (int64, error) {
	res, err := q.exec(ctx, deleteAccount, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const categoryColumns = `id, account_id, name`

const createCategory = `INSERT INTO categories (id, account_id, name) VALUES (?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.exec(ctx, createCategory, c.ID, c.AccountID, c.Name)
	return err
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return scanCategory(q.queryRow(ctx, getCategory, id))
}

const getCategoryByName = `SELECT ` + categoryColumns + ` FROM categories WHERE account_id = ? AND name = ?`

func (q *Queries) GetCategoryByName(ctx context.Context, accountID, name string) (core.Category, error) {
	return scanCategory(q.queryRow(ctx, getCategoryByName, accountID, name))
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories
WHERE (? = '' OR account_id = ?)
ORDER BY account_id, name`

func (q *Queries) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	rows, err := q.query(ctx, listCategories, accountID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// updateCategory only changes account_id while no record references the
// category, checked in the same statement.
const updateCategory = `UPDATE categories SET account_id = ?, name = ?
WHERE id = ? AND (account_id = ? OR NOT EXISTS (SELECT 1 FROM records WHERE category_id = ?))`

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.exec(ctx, updateCategory, c.AccountID, c.Name, c.ID, c.AccountID, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id string) (int64, error) {
	res, err := q.exec(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const snapshotColumns = `id, account_id, day, current_amount, positive_movement, negative_movement, refund_amount`

const upsertSnapshot = `INSERT INTO snapshots (` + snapshotColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    current_amount = excluded.current_amount,
    positive_movement = excluded.positive_movement,
    negative_movement = excluded.negative_movement,
    refund_amount = excluded.refund_amount`

func (q *Queries) UpsertSnapshot(ctx context.Context, s core.Snapshot) error {
	_, err := q.exec(ctx, upsertSnapshot,
		s.ID, s.AccountID, s.Date,
		s.CurrentAmount, s.PositiveMovement, s.NegativeMovement, s.RefundAmount)
	return err
}

const getSnapshot = `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = ?`

func (q *Queries) GetSnapshot(ctx context.Context, id string) (core.Snapshot, error) {
	return scanSnapshot(q.queryRow(ctx, getSnapshot, id))
}

const getSnapshotByDate = `SELECT ` + snapshotColumns + ` FROM snapshots WHERE account_id = ? AND day = ?`

func (q *Queries) GetSnapshotByDate(ctx context.Context, accountID string, day core.Date) (core.Snapshot, error) {
	return scanSnapshot(q.queryRow(ctx, getSnapshotByDate, accountID, day))
}

const getLatestSnapshotBefore = `SELECT ` + snapshotColumns + ` FROM snapshots
WHERE account_id = ? AND day < ?
ORDER BY day DESC
LIMIT 1`

func (q *Queries) GetLatestSnapshotBefore(ctx context.Context, accountID string, day core.Date) (core.Snapshot, error) {
	return scanSnapshot(q.queryRow(ctx, getLatestSnapshotBefore, accountID, day))
}

const listSnapshotsAfter = `SELECT ` + snapshotColumns + ` FROM snapshots
WHERE account_id = ? AND day > ?
ORDER BY day`

func (q *Queries) ListSnapshotsAfter(ctx context.Context, accountID string, day core.Date) ([]core.Snapshot, error) {
	return q.listSnapshots(ctx, listSnapshotsAfter, accountID, day)
}

const listSnapshotsBetween = `SELECT ` + snapshotColumns + ` FROM snapshots
WHERE (? = '' OR account_id = ?) AND day >= ? AND day <= ?
ORDER BY account_id, day`

func (q *Queries) ListSnapshotsBetween(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error) {
	return q.listSnapshots(ctx, listSnapshotsBetween, accountID, accountID, from, to)
}

func (q *Queries) listSnapshots(ctx context.Context, query string, args ...any) ([]core.Snapshot, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const listRecordIDsBySnapshot = `SELECT id FROM records WHERE snapshot_id = ? ORDER BY created_at, id`

func (q *Queries) ListRecordIDsBySnapshot(ctx context.Context, snapshotID string) ([]string, error) {
	rows, err := q.query(ctx, listRecordIDsBySnapshot, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type SnapshotRecordID struct {
	SnapshotID string
	RecordID   string
}

const listRecordIDsBetween = `SELECT snapshot_id, id FROM records
WHERE (? = '' OR account_id = ?) AND day >= ? AND day <= ?
ORDER BY created_at, id`

func (q *Queries) ListRecordIDsBetween(ctx context.Context, accountID string, from, to core.Date) ([]SnapshotRecordID, error) {
	rows, err := q.query(ctx, listRecordIDsBetween, accountID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotRecordID
	for rows.Next() {
		var i SnapshotRecordID
		if err := rows.Scan(&i.SnapshotID, &i.RecordID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const recordColumns = `id, account_id, snapshot_id, category_id, day, movement_amount, refund_amount, description, created_at, updated_at`

const upsertRecord = `INSERT INTO records (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    account_id = excluded.account_id,
    snapshot_id = excluded.snapshot_id,
    category_id = excluded.category_id,
    day = excluded.day,
    movement_amount = excluded.movement_amount,
    refund_amount = excluded.refund_amount,
    description = excluded.description,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertRecord(ctx context.Context, r core.Record) error {
	_, err := q.exec(ctx, upsertRecord,
		r.ID, r.AccountID, r.SnapshotID, r.CategoryID, r.Date,
		r.MovementAmount, r.RefundAmount, r.Description, r.CreatedAt, r.UpdatedAt)
	return err
}

const getRecord = `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

func (q *Queries) GetRecord(ctx context.Context, id string) (core.Record, error) {
	return scanRecord(q.queryRow(ctx, getRecord, id))
}

const listRecordsBetween = `SELECT ` + recordColumns + ` FROM records
WHERE (? = '' OR account_id = ?) AND day >= ? AND day <= ?
ORDER BY day, created_at, id`

func (q *Queries) ListRecordsBetween(ctx context.Context, accountID string, from, to core.Date) ([]core.Record, error) {
	rows, err := q.query(ctx, listRecordsBetween, accountID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteRecord = `DELETE FROM records WHERE id = ?`

func (q *Queries) DeleteRecord(ctx context.Context, id string) (int64, error) {
	res, err := q.exec(ctx, deleteRecord, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countRecordsByAccount = `SELECT COUNT(*) FROM records WHERE account_id = ?`

func (q *Queries) CountRecordsByAccount(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := q.queryRow(ctx, countRecordsByAccount, accountID).Scan(&n)
	return n, err
}

const countRecordsByCategory = `SELECT COUNT(*) FROM records WHERE category_id = ?`

func (q *Queries) CountRecordsByCategory(ctx context.Context, categoryID string) (int64, error) {
	var n int64
	err := q.queryRow(ctx, countRecordsByCategory, categoryID).Scan(&n)
	return n, err
}

const lockAccount = `SELECT pg_advisory_xact_lock(hashtext(?))`

// LockAccount takes a transaction-scoped advisory lock. SQLite needs none:
// its write transactions are already exclusive.
func (q *Queries) LockAccount(ctx context.Context, accountID string) error {
	if q.dialect != DialectPostgres {
		return nil
	}
	_, err := q.exec(ctx, lockAccount, accountID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.Name, &a.CreatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func scanCategory(row scanner) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.AccountID, &c.Name)
	return c, err
}

func scanSnapshot(row scanner) (core.Snapshot, error) {
	var s core.Snapshot
	err := row.Scan(&s.ID, &s.AccountID, &s.Date,
		&s.CurrentAmount, &s.PositiveMovement, &s.NegativeMovement, &s.RefundAmount)
	return s, err
}

func scanRecord(row scanner) (core.Record, error) {
	var r core.Record
	err := row.Scan(&r.ID, &r.AccountID, &r.SnapshotID, &r.CategoryID, &r.Date,
		&r.MovementAmount, &r.RefundAmount, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, err
}
