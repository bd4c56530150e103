package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// BillRow mirrors one row of the bills table.
type BillRow struct {
	ID            string
	Email         string
	Type          string
	Name          string
	Date          string
	AmountCents   int64
	VatCents      int64
	Pct           int64
	Commentary    string
	FileUrl       string
	FileName      string
	Status        string
	CreatedAt     string
	UpdatedAt     string
	Version       int64
	SyncStatus    string
	SyncedVersion int64
}

const billColumns = `id, email, type, name, date, amount_cents, vat_cents, pct, commentary,
       file_url, file_name, status, created_at, updated_at, version, sync_status, synced_version`

func scanBill(sc interface{ Scan(...any) error }) (BillRow, error) {
	var i BillRow
	err := sc.Scan(
		&i.ID,
		&i.Email,
		&i.Type,
		&i.Name,
		&i.Date,
		&i.AmountCents,
		&i.VatCents,
		&i.Pct,
		&i.Commentary,
		&i.FileUrl,
		&i.FileName,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Version,
		&i.SyncStatus,
		&i.SyncedVersion,
	)
	return i, err
}

const upsertBill = `-- name: UpsertBill :one
INSERT INTO bills (id, email, type, name, date, amount_cents, vat_cents, pct, commentary,
                   file_url, file_name, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    email        = excluded.email,
    type         = excluded.type,
    name         = excluded.name,
    date         = excluded.date,
    amount_cents = excluded.amount_cents,
    vat_cents    = excluded.vat_cents,
    pct          = excluded.pct,
    commentary   = excluded.commentary,
    file_url     = excluded.file_url,
    file_name    = excluded.file_name,
    status       = excluded.status,
    updated_at   = excluded.updated_at,
    version      = bills.version + 1,
    sync_status  = 'pending'
RETURNING version
`

type UpsertBillParams struct {
	ID          string
	Email       string
	Type        string
	Name        string
	Date        string
	AmountCents int64
	VatCents    int64
	Pct         int64
	Commentary  string
	FileUrl     string
	FileName    string
	Status      string
	CreatedAt   string
	UpdatedAt   string
}

func (q *Queries) UpsertBill(ctx context.Context, arg UpsertBillParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertBill,
		arg.ID,
		arg.Email,
		arg.Type,
		arg.Name,
		arg.Date,
		arg.AmountCents,
		arg.VatCents,
		arg.Pct,
		arg.Commentary,
		arg.FileUrl,
		arg.FileName,
		arg.Status,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const getBill = `-- name: GetBill :one
SELECT ` + billColumns + ` FROM bills WHERE id = ?
`

func (q *Queries) GetBill(ctx context.Context, id string) (BillRow, error) {
	return scanBill(q.db.QueryRowContext(ctx, getBill, id))
}

const listBills = `-- name: ListBills :many
SELECT ` + billColumns + ` FROM bills ORDER BY rowid
`

func (q *Queries) ListBills(ctx context.Context) ([]BillRow, error) {
	rows, err := q.db.QueryContext(ctx, listBills)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BillRow
	for rows.Next() {
		i, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPendingSyncBills = `-- name: GetPendingSyncBills :many
SELECT id, version, created_at FROM bills
WHERE sync_status = 'pending'
ORDER BY created_at
LIMIT ?
`

type GetPendingSyncBillsRow struct {
	ID        string
	Version   int64
	CreatedAt string
}

func (q *Queries) GetPendingSyncBills(ctx context.Context, limit int64) ([]GetPendingSyncBillsRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncBills, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPendingSyncBillsRow
	for rows.Next() {
		var i GetPendingSyncBillsRow
		if err := rows.Scan(&i.ID, &i.Version, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markBillSynced = `-- name: MarkBillSynced :execrows
UPDATE bills SET sync_status = 'synced', synced_version = ?
WHERE id = ? AND version = ?
`

func (q *Queries) MarkBillSynced(ctx context.Context, id string, version int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markBillSynced, version, id, version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markBillSyncError = `-- name: MarkBillSyncError :exec
UPDATE bills SET sync_status = 'error' WHERE id = ?
`

func (q *Queries) MarkBillSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markBillSyncError, id)
	return err
}

const retryFailedSyncs = `-- name: RetryFailedSyncs :execrows
UPDATE bills SET sync_status = 'pending' WHERE sync_status = 'error'
`

func (q *Queries) RetryFailedSyncs(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, retryFailedSyncs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getSyncStats = `-- name: GetSyncStats :one
SELECT
    COALESCE(SUM(CASE WHEN sync_status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
    COALESCE(SUM(CASE WHEN sync_status = 'synced' THEN 1 ELSE 0 END), 0) AS synced,
    COALESCE(SUM(CASE WHEN sync_status = 'error' THEN 1 ELSE 0 END), 0) AS failed
FROM bills
`

type GetSyncStatsRow struct {
	Pending int64
	Synced  int64
	Failed  int64
}

func (q *Queries) GetSyncStats(ctx context.Context) (GetSyncStatsRow, error) {
	var i GetSyncStatsRow
	err := q.db.QueryRowContext(ctx, getSyncStats).Scan(&i.Pending, &i.Synced, &i.Failed)
	return i, err
}
