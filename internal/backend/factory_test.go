package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"billed/internal/config"
	"billed/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		DataBackend:              "sqlite",
		DataDir:                  "seed",
		SQLiteDBPath:             "a.db",
		ReceiptsDBPath:           "r.db",
		AMQPURL:                  "amqp://localhost",
		GoogleServiceAccountFile: "sa.json",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.ReceiptsDBPath != "r.db" || cfg.DataDirectory != "seed" ||
		cfg.GoogleServiceAccountFile != "sa.json" {
		t.Errorf("unexpected backend config: %+v", cfg)
	}

	app.DataBackend = "postgres"
	if _, err := FromAppConfig(app); err == nil {
		t.Error("expected error for invalid backend")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"invalid type", Config{Type: "x"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend, ReceiptsDBPath: "r"}, "SQLite database path is required"},
		{"sqlite without receipts", Config{Type: SQLiteBackend, SQLiteDBPath: "a"}, "receipts database path is required"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleSheetName: "Bills", ReceiptsDBPath: "r"}, "Spreadsheet ID is required"},
		{
			"sheets without credentials",
			Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "Bills", ReceiptsDBPath: "r"},
			"service account must be provided",
		},
		{
			"sheets client without token",
			Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "Bills", ReceiptsDBPath: "r", GoogleOAuthClientJSON: "{}"},
			"GoogleOAuthTokenFile or GoogleOAuthTokenJSON",
		},
		{
			"sheets with service account",
			Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "Bills", ReceiptsDBPath: "r", GoogleServiceAccountJSON: "{}"},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "sqlite,sheets,memory" {
		t.Errorf("unexpected backend types: %s", got)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bills, err := res.Backend.Bills().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bills) != 4 {
		t.Errorf("expected fixture bills, got %d", len(bills))
	}
	if res.Cleanup != nil {
		t.Error("memory backend should not need cleanup")
	}
}

func TestCreateSQLiteBackendWithoutBroker(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:           SQLiteBackend,
		SQLiteDBPath:   filepath.Join(dir, "billed.db"),
		ReceiptsDBPath: filepath.Join(dir, "receipts.db"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			t.Errorf("cleanup: %v", err)
		}
	}()

	bills := res.Backend.Bills()
	r, err := bills.Create(ctx, core.AttachedFile{Name: "r.jpg", MimeType: "image/jpeg", Data: []byte{1, 2}})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	date, _ := core.ParseDate("2024-03-01")
	saved, err := bills.Update(ctx, core.Bill{
		ID:       "b-1",
		Email:    "a@a",
		Type:     "Transports",
		Name:     "train",
		Date:     date,
		Amount:   core.Money{Cents: 1200},
		VAT:      core.Money{Cents: 200},
		Pct:      20,
		FileURL:  r.FileURL,
		FileName: r.FileName,
		Status:   core.StatusPending,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := bills.Get(ctx, saved.ID)
	if err != nil || got.FileName != "r.jpg" {
		t.Fatalf("get: %+v %v", got, err)
	}
}
