package adapters

import (
	"context"

	"billed/internal/core"
	"billed/internal/services"
	"billed/internal/storage"
	"billed/internal/store"
)

// ReceiptStore holds receipt bytes for backends that cannot.
type ReceiptStore interface {
	store.ReceiptCreator
	store.ReceiptReader
}

// SQLiteAdapter exposes SQLite + AMQP as a store.Store so the HTTP layer
// does not care which backend is active. Writes go through the BillService
// so every saved bill is queued for sync.
type SQLiteAdapter struct {
	storage  *storage.SQLiteRepository
	service  *services.BillService
	receipts ReceiptStore
}

var (
	_ store.Store = (*SQLiteAdapter)(nil)
	_ store.Bills = (*SQLiteAdapter)(nil)
)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.BillService, receipts ReceiptStore) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:  storage,
		service:  service,
		receipts: receipts,
	}
}

func (a *SQLiteAdapter) Bills() store.Bills { return a }

func (a *SQLiteAdapter) List(ctx context.Context) ([]core.Bill, error) {
	return a.storage.List(ctx)
}

func (a *SQLiteAdapter) Get(ctx context.Context, id string) (core.Bill, error) {
	return a.storage.Get(ctx, id)
}

// Update implements store.BillUpdater
func (a *SQLiteAdapter) Update(ctx context.Context, b core.Bill) (core.Bill, error) {
	return a.service.SaveBill(ctx, b)
}

func (a *SQLiteAdapter) Create(ctx context.Context, f core.AttachedFile) (core.Receipt, error) {
	return a.receipts.Create(ctx, f)
}

func (a *SQLiteAdapter) Open(ctx context.Context, key string) (core.AttachedFile, error) {
	return a.receipts.Open(ctx, key)
}

// Ping checks the database so readiness probes cover the sqlite backend.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
