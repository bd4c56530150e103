package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"billed/internal/amqp"
	"billed/internal/core"
	"billed/internal/storage"
	"billed/internal/store"
)

// BillSource is the local database the worker reads from.
type BillSource interface {
	GetWithVersion(ctx context.Context, id string) (core.Bill, int64, error)
	GetPendingSyncBills(ctx context.Context, limit int) ([]storage.PendingSyncBill, error)
	MarkSynced(ctx context.Context, id string, version int64) (bool, error)
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker pushes bills from SQLite to Google Sheets.
type SyncWorker struct {
	storage   BillSource
	sheets    store.BillUpdater
	batchSize int
}

func NewSyncWorker(storage BillSource, sheets store.BillUpdater, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single bill sync message from AMQP.
// The current database version is synced even when the message is older.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.BillSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID, "version", msg.Version)

	bill, version, err := w.storage.GetWithVersion(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Bill from sync message not found, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get bill from storage: %w", err)
	}

	return w.syncBillToSheets(ctx, bill, version)
}

// ProcessPendingBills syncs bills that have not been synced yet. It is the
// backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingBills(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck syncs a larger batch of pending bills when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending bills found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced, "errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSyncBills(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending bills: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending bills", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		bill, version, err := w.storage.GetWithVersion(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get bill", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.syncBillToSheets(ctx, bill, version); err != nil {
			slog.ErrorContext(ctx, "Failed to sync bill", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncBillToSheets(ctx context.Context, bill core.Bill, version int64) error {
	if _, err := w.sheets.Update(ctx, bill); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, bill.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", bill.ID, "error", markErr)
		}
		return fmt.Errorf("update sheets: %w", err)
	}

	if _, err := w.storage.MarkSynced(ctx, bill.ID, version); err != nil {
		// The row is in Sheets; a failed mark only costs a redundant upsert later.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", bill.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced bill",
		"id", bill.ID,
		"version", version,
		"amount_cents", bill.Amount.Cents)

	return nil
}
