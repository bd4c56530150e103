package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"billed/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// PendingSyncBill is the minimal data needed to queue a sync message.
type PendingSyncBill struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// SyncStats counts bills by sync state.
type SyncStats struct {
	Pending int64
	Synced  int64
	Failed  int64
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Upsert inserts or replaces a bill and returns it with its new version.
// Every write resets the sync state to pending.
func (r *SQLiteRepository) Upsert(ctx context.Context, b core.Bill) (core.Bill, int64, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, 0, err
	}
	if b.ID == "" {
		return core.Bill{}, 0, errors.New("bill id is required")
	}
	now := r.now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}

	version, err := r.queries.UpsertBill(ctx, UpsertBillParams{
		ID:          b.ID,
		Email:       b.Email,
		Type:        b.Type,
		Name:        b.Name,
		Date:        b.Date.String(),
		AmountCents: b.Amount.Cents,
		VatCents:    b.VAT.Cents,
		Pct:         int64(b.Pct),
		Commentary:  b.Commentary,
		FileUrl:     b.FileURL,
		FileName:    b.FileName,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return core.Bill{}, 0, fmt.Errorf("upsert bill: %w", err)
	}

	slog.InfoContext(ctx, "Bill saved to SQLite",
		"id", b.ID,
		"version", version,
		"amount_cents", b.Amount.Cents,
		"date", b.Date.String())

	return b, version, nil
}

// List returns every bill in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.queries.ListBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	out := make([]core.Bill, 0, len(rows))
	for _, row := range rows {
		b, err := row.toCore()
		if err != nil {
			return nil, fmt.Errorf("bill %s: %w", row.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Get returns a single bill by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Bill, error) {
	row, err := r.queries.GetBill(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return row.toCore()
}

// GetWithVersion returns a bill and its current version.
func (r *SQLiteRepository) GetWithVersion(ctx context.Context, id string) (core.Bill, int64, error) {
	row, err := r.queries.GetBill(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, 0, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Bill{}, 0, fmt.Errorf("get bill: %w", err)
	}
	b, err := row.toCore()
	return b, row.Version, err
}

// GetPendingSyncBills returns bills that still need to be synced to Google Sheets.
func (r *SQLiteRepository) GetPendingSyncBills(ctx context.Context, limit int) ([]PendingSyncBill, error) {
	rows, err := r.queries.GetPendingSyncBills(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync bills: %w", err)
	}
	out := make([]PendingSyncBill, len(rows))
	for i, row := range rows {
		created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
		out[i] = PendingSyncBill{ID: row.ID, Version: row.Version, CreatedAt: created}
	}
	return out, nil
}

// MarkSynced records a successful sync of the given version. It reports
// false when the bill changed since, leaving it pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) (bool, error) {
	n, err := r.queries.MarkBillSynced(ctx, id, version)
	if err != nil {
		return false, fmt.Errorf("mark bill synced: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "Bill changed during sync, left pending", "id", id, "version", version)
		return false, nil
	}
	slog.InfoContext(ctx, "Bill marked as synced", "id", id, "version", version)
	return true, nil
}

// MarkSyncError marks a bill as having sync errors.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.queries.MarkBillSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark bill sync error: %w", err)
	}
	slog.WarnContext(ctx, "Bill marked with sync error", "id", id)
	return nil
}

// RetryFailedSyncs moves errored bills back to pending.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	n, err := r.queries.RetryFailedSyncs(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SyncStats(ctx context.Context) (SyncStats, error) {
	row, err := r.queries.GetSyncStats(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("get sync stats: %w", err)
	}
	return SyncStats{Pending: row.Pending, Synced: row.Synced, Failed: row.Failed}, nil
}

func (row BillRow) toCore() (core.Bill, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Bill{}, err
	}
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return core.Bill{
		ID:         row.ID,
		Email:      row.Email,
		Type:       row.Type,
		Name:       row.Name,
		Date:       date,
		Amount:     core.Money{Cents: row.AmountCents},
		VAT:        core.Money{Cents: row.VatCents},
		Pct:        int(row.Pct),
		Commentary: row.Commentary,
		FileURL:    row.FileUrl,
		FileName:   row.FileName,
		Status:     core.Status(row.Status),
		CreatedAt:  created,
	}, nil
}
