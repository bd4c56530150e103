package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"billed/internal/core"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "billed.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func testBill(id string) core.Bill {
	return core.Bill{
		ID:         id,
		Email:      "a@a",
		Type:       "Hôtel et logement",
		Name:       "encore",
		Date:       core.NewDate(2004, 4, 4),
		Amount:     core.Money{Cents: 40000},
		VAT:        core.Money{Cents: 8000},
		Pct:        20,
		Commentary: "séminaire",
		FileURL:    "/receipts/x.jpg",
		FileName:   "x.jpg",
		Status:     core.StatusPending,
	}
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestRepo(t)
	v, dirty, err := MigrationVersion(path)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 2 || dirty {
		t.Fatalf("expected clean version 2, got %d dirty=%v", v, dirty)
	}
	// Re-running is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	b, version, err := repo.Upsert(ctx, testBill("b1"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if version != 1 || b.CreatedAt.IsZero() {
		t.Fatalf("unexpected insert result: version=%d bill=%+v", version, b)
	}

	b.Status = core.StatusAccepted
	if _, version, err = repo.Upsert(ctx, b); err != nil || version != 2 {
		t.Fatalf("update: version=%d err=%v", version, err)
	}

	got, v, err := repo.GetWithVersion(ctx, "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 2 || got.Status != core.StatusAccepted || got.Amount.Cents != 40000 || got.Date.String() != "2004-04-04" {
		t.Fatalf("unexpected bill: %+v v=%d", got, v)
	}
	if got.Commentary != "séminaire" || got.FileURL != "/receipts/x.jpg" || got.Pct != 20 {
		t.Fatalf("fields lost: %+v", got)
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	repo, _ := newTestRepo(t)
	b := testBill("b1")
	b.Pct = 120
	if _, _, err := repo.Upsert(context.Background(), b); !errors.Is(err, core.ErrInvalidPct) {
		t.Fatalf("expected ErrInvalidPct, got %v", err)
	}
	if _, _, err := repo.Upsert(context.Background(), testBill("")); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestGetMissing(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	for _, id := range []string{"c", "a", "b"} {
		if _, _, err := repo.Upsert(ctx, testBill(id)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	// An update must not move the row.
	if _, _, err := repo.Upsert(ctx, testBill("c")); err != nil {
		t.Fatalf("update: %v", err)
	}
	bills, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bills) != 3 || bills[0].ID != "c" || bills[1].ID != "a" || bills[2].ID != "b" {
		t.Fatalf("unexpected order: %+v", bills)
	}
}

func TestSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	if _, _, err := repo.Upsert(ctx, testBill("b1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	pending, err := repo.GetPendingSyncBills(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != "b1" || pending[0].Version != 1 {
		t.Fatalf("unexpected pending: %+v %v", pending, err)
	}

	// A stale version is not marked synced.
	if _, _, err := repo.Upsert(ctx, testBill("b1")); err != nil {
		t.Fatalf("update: %v", err)
	}
	ok, err := repo.MarkSynced(ctx, "b1", 1)
	if err != nil || ok {
		t.Fatalf("stale mark should be ignored: ok=%v err=%v", ok, err)
	}
	if ok, err = repo.MarkSynced(ctx, "b1", 2); err != nil || !ok {
		t.Fatalf("mark synced: ok=%v err=%v", ok, err)
	}
	if pending, _ = repo.GetPendingSyncBills(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %+v", pending)
	}

	if err := repo.MarkSyncError(ctx, "b1"); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	stats, err := repo.SyncStats(ctx)
	if err != nil || stats.Failed != 1 || stats.Pending != 0 {
		t.Fatalf("unexpected stats: %+v %v", stats, err)
	}
	if n, err := repo.RetryFailedSyncs(ctx); err != nil || n != 1 {
		t.Fatalf("retry: n=%d err=%v", n, err)
	}
	if stats, _ = repo.SyncStats(ctx); stats.Pending != 1 {
		t.Fatalf("expected bill back to pending, got %+v", stats)
	}
}
